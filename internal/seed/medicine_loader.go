package seed

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// LoadMedicinesFile opens csvPath and hands it to LoadMedicines.
func LoadMedicinesFile(db *sqlx.DB, csvPath string, log logrus.FieldLogger) (int, error) {
	file, err := os.Open(csvPath)
	if err != nil {
		return 0, errors.Wrapf(err, "unable to load medicine catalog %s", csvPath)
	}
	defer file.Close()
	return LoadMedicines(db, file, log)
}

// LoadMedicines ingests a CSV with header name,description,quantity,unit_price,expiry_date into
// the medicines table. Rows whose name already exists are ignored, so reseeding never touches
// live stock. Malformed rows are logged and skipped. It returns the number of rows inserted.
func LoadMedicines(db *sqlx.DB, r io.Reader, log logrus.FieldLogger) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	// Skip header
	if _, err := reader.Read(); err != nil {
		return 0, errors.Wrap(err, "unable to read medicine header")
	}

	tx, err := db.Beginx()
	if err != nil {
		return 0, errors.Wrap(err, "unable to start medicine transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT OR IGNORE INTO medicines (name, description, quantity_on_hand, unit_price, expiry_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, errors.Wrap(err, "unable to prepare medicine insert")
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	rows, line := 0, 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			log.WithError(err).WithField("line", line).Warn("unable to read medicine row")
			continue
		}
		if len(record) < 4 {
			log.WithField("line", line).Warn("medicine row has too few columns")
			continue
		}
		name := strings.TrimSpace(record[0])
		description := strings.TrimSpace(record[1])
		qty, qerr := strconv.ParseInt(strings.TrimSpace(record[2]), 10, 64)
		price, perr := decimal.NewFromString(strings.TrimSpace(record[3]))
		if name == "" || qerr != nil || perr != nil || qty < 0 || price.IsNegative() {
			log.WithField("line", line).Warn("invalid medicine row")
			continue
		}
		var expiry any
		if len(record) > 4 {
			if v := strings.TrimSpace(record[4]); v != "" {
				if _, err := time.Parse("2006-01-02", v); err != nil {
					log.WithField("line", line).Warn("expiry_date must be in YYYY-MM-DD format")
					continue
				}
				expiry = v
			}
		}
		var desc any
		if description != "" {
			desc = description
		}

		res, err := stmt.Exec(name, desc, qty, price.String(), expiry, now, now)
		if err != nil {
			log.WithError(err).WithField("line", line).Warn("unable to insert medicine")
			continue
		}
		if n, _ := res.RowsAffected(); n > 0 {
			rows++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "unable to commit medicines")
	}
	log.WithField("rows", rows).Info("medicine catalog loaded")
	return rows, nil
}
