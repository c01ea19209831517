package state

var (
	instancePrefix    = []byte("instance/")
	instanceTTLPrefix = []byte("instance-ttl/")
	assetPrefix       = []byte("asset/")
	trustlinePrefix   = []byte("trustline/")
	accountPrefix     = []byte("account/")
	noncePrefix       = []byte("nonce/")
	nonceExpiryPrefix = []byte("nonce-expiry/")

	nonceCursorKey = []byte("nonce-cursor")
)

func joinKey(prefix []byte, parts ...[]byte) []byte {
	size := len(prefix)
	for _, p := range parts {
		size += len(p) + 1
	}
	buf := make([]byte, 0, size)
	buf = append(buf, prefix...)
	for i, p := range parts {
		if i > 0 {
			buf = append(buf, '/')
		}
		buf = append(buf, p...)
	}
	return buf
}
