package indexer

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/stellarcarbon/sorocarbon/core/events"
)

type parquetRow struct {
	ReceiptID string `parquet:"name=receipt_id, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Contract  string `parquet:"name=contract, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Funder    string `parquet:"name=funder, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Recipient string `parquet:"name=recipient, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Requested int64  `parquet:"name=requested, type=INT64"`
	Amount    int64  `parquet:"name=amount, type=INT64"`
	Tonnes    string `parquet:"name=tonnes, type=UTF8, encoding=PLAIN_DICTIONARY"`
	ProjectID string `parquet:"name=project_id, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Ledger    int64  `parquet:"name=ledger, type=INT64"`
	CreatedAt string `parquet:"name=created_at, type=UTF8, encoding=PLAIN_DICTIONARY"`
}

// ExportParquet writes retirements matching f to path. Memo and email are
// omitted from exports. It returns the number of rows written.
func (s *Store) ExportParquet(ctx context.Context, path string, f Filter) (int, error) {
	rows, err := s.List(ctx, f)
	if err != nil {
		return 0, err
	}
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("indexer: create parquet: %w", err)
	}
	defer file.Close()

	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, new(parquetRow), 1)
	if err != nil {
		return 0, fmt.Errorf("indexer: parquet schema: %w", err)
	}
	pw.RowGroupSize = 128 * 1024 * 1024
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, row := range rows {
		pr := &parquetRow{
			ReceiptID: row.ReceiptID,
			Contract:  row.Contract,
			Funder:    row.Funder,
			Recipient: row.Recipient,
			Requested: row.Requested,
			Amount:    row.Amount,
			Tonnes:    events.Tonnes(row.Amount).StringFixed(events.AssetDecimals),
			ProjectID: row.ProjectID,
			Ledger:    int64(row.Ledger),
			CreatedAt: row.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := pw.Write(pr); err != nil {
			pw.WriteStop()
			return 0, fmt.Errorf("indexer: write parquet row: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return 0, fmt.Errorf("indexer: finalize parquet: %w", err)
	}
	return len(rows), nil
}
