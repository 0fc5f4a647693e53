package main

import (
	"context"
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"

	"csvsniff/internal/config"
	"csvsniff/internal/metrics"
	"csvsniff/internal/schema"
	"csvsniff/internal/storage"
	"csvsniff/pkg/sniffer"
)

// saveToCatalog stores rep under src and warns when the source's shape
// changed since the previous record.
func saveToCatalog(ctx context.Context, c config.Config, d deps, log logrus.FieldLogger, src string, rep *sniffer.Report) (err error) {
	backend := schema.NormalizeBackend(c.Catalog.Backend)
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.IncCounter(metrics.CatalogSavesTotal, 1, metrics.Labels{"backend": backend, "status": status})
	}()

	dsn, ok, err := storage.ResolveDSN(backend, c.Catalog.DSN, d.Getenv)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no DSN for %s (set --dsn, DSN or DSN_* variables)", backend)
	}

	repo, err := storage.New(ctx, storage.Config{Kind: backend, DSN: dsn, Table: c.Catalog.Table})
	if err != nil {
		return fmt.Errorf("open %s: %w", backend, err)
	}
	defer repo.Close()

	if err := repo.EnsureSchema(ctx); err != nil {
		return err
	}

	rec, err := storage.NewRecord(src, rep, d.Now())
	if err != nil {
		return err
	}

	prev, found, err := repo.Latest(ctx, src)
	if err != nil {
		return err
	}
	if found {
		if diff := shapeChanges(prev, rec); len(diff) > 0 {
			log.WithFields(logrus.Fields{
				"source":        src,
				"previous_id":   prev.ID.String(),
				"previous_time": prev.SniffedAt,
				"changed":       diff,
			}).Warn("source shape changed since last sniff")
		}
	}

	if err := repo.Save(ctx, rec); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{"id": rec.ID.String(), "backend": backend}).Info("report saved to catalog")
	return nil
}

// shapeChanges lists the dialect and schema attributes that differ.
func shapeChanges(prev, cur storage.Record) []string {
	var out []string
	if prev.Delimiter != cur.Delimiter {
		out = append(out, "delimiter")
	}
	if prev.Quote != cur.Quote {
		out = append(out, "quote")
	}
	if prev.NumFields != cur.NumFields {
		out = append(out, "num_fields")
	}
	if prev.HasHeader != cur.HasHeader {
		out = append(out, "has_header")
	}
	if !slices.Equal(prev.FieldTypes, cur.FieldTypes) {
		out = append(out, "field_types")
	}
	return out
}
