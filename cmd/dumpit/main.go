package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/peter-kozarec/tickreplay/internal/dbg"
	"github.com/peter-kozarec/tickreplay/pkg/datasource/duckdb"
	"github.com/peter-kozarec/tickreplay/pkg/datasource/historical"
	"go.uber.org/zap"
)

const defaultLayout = "2006-01-02 15:04:05.999999999Z07:00"

// readCSV parses timestamp,price,volume rows. The first row is a header.
func readCSV(r io.Reader, layout string) ([]historical.BinaryTick, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 3

	// Skip header
	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}

	var ticks []historical.BinaryTick
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := reader.FieldPos(0)

		ts, err := time.Parse(layout, record[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		price, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		volume, err := strconv.ParseUint(record[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		ticks = append(ticks, historical.BinaryTick{
			TimeStamp: ts.UnixNano(),
			Price:     price,
			Volume:    volume,
		})
	}
	return ticks, nil
}

func readAll(logger *zap.Logger, paths []string, layout string) ([]historical.BinaryTick, error) {
	var ticks []historical.BinaryTick
	for _, path := range paths {
		f, err := os.Open(path) // #nosec G304
		if err != nil {
			return nil, err
		}
		chunk, err := readCSV(f, layout)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		ticks = append(ticks, chunk...)
		logger.Info("csv read", zap.String("file", path), zap.Int("ticks", len(chunk)))
	}

	slices.SortStableFunc(ticks, func(a, b historical.BinaryTick) int {
		switch {
		case a.TimeStamp < b.TimeStamp:
			return -1
		case a.TimeStamp > b.TimeStamp:
			return 1
		}
		return 0
	})
	return ticks, nil
}

func importDuckDB(ctx context.Context, logger *zap.Logger, dsn, symbol string, ticks []historical.BinaryTick) error {
	p := duckdb.NewProvider(logger, dsn)
	if err := p.Connect(ctx); err != nil {
		return err
	}
	defer p.Close()

	if err := p.CreateTable(ctx, symbol); err != nil {
		return err
	}
	return p.Import(ctx, symbol, len(ticks), func(i int) (int64, float64, uint64) {
		return ticks[i].TimeStamp, ticks[i].Price, ticks[i].Volume
	})
}

func main() {
	symbol := flag.String("symbol", "", "symbol the csv files belong to")
	out := flag.String("out", ".", "directory of the binary tick file")
	dsn := flag.String("duckdb", "", "also import into this duckdb database")
	layout := flag.String("layout", defaultLayout, "timestamp layout of the first column")
	flag.Parse()

	logger := dbg.NewDevLogger()
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(logger)

	if *symbol == "" || flag.NArg() == 0 {
		logger.Fatal("usage: dumpit -symbol ES [-out dir] [-duckdb file] ticks_2024.csv ...")
	}

	ticks, err := readAll(logger, flag.Args(), *layout)
	if err != nil {
		logger.Fatal("failed to read csv", zap.Error(err))
	}

	path := historical.FileName(*out, *symbol)
	if err := historical.WriteFile(path, ticks); err != nil {
		logger.Fatal("failed to dump", zap.Error(err))
	}
	logger.Info("dump finished", zap.String("symbol", *symbol), zap.String("file", path), zap.Int("ticks", len(ticks)))

	if *dsn != "" {
		if err := importDuckDB(context.Background(), logger, *dsn, *symbol, ticks); err != nil {
			logger.Fatal("failed to import", zap.Error(err))
		}
		logger.Info("duckdb import finished", zap.String("dsn", *dsn))
	}
}
