package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ppiankov/citeguard/internal/model"
)

// timeLayout sorts lexically in time order
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ReportSummary is one row of the history listing
type ReportSummary struct {
	ID                string
	Source            string
	CreatedAt         time.Time
	TotalCitations    int
	VerifiedCount     int
	HallucinatedCount int
	AmbiguousCount    int
	TrustScore        int
}

// SaveReport stores a report and its citations. Saving the same report ID
// again replaces the earlier copy.
func (db *DB) SaveReport(report *model.AnalysisReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM citations WHERE report_id = ?", report.ID); err != nil {
		return fmt.Errorf("clear citations: %w", err)
	}

	_, err = tx.Exec(
		`INSERT OR REPLACE INTO reports
		(id, source, created_at, total_citations, verified_count, hallucinated_count, ambiguous_count, trust_score, report_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.ID, report.Source, report.CreatedAt.UTC().Format(timeLayout),
		report.TotalCitations, report.VerifiedCount, report.HallucinatedCount, report.AmbiguousCount,
		report.OverallTrustScore, string(payload),
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}

	for i, c := range report.Citations {
		var source, doi string
		if c.DatabaseMatch != nil {
			source, doi = string(c.DatabaseMatch.Source), c.DatabaseMatch.DOI
		}
		_, err := tx.Exec(
			`INSERT INTO citations (id, report_id, position, title, verdict, confidence, match_source, doi)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, report.ID, i, c.Title, string(c.Verdict), c.ConfidenceScore, source, doi,
		)
		if err != nil {
			return fmt.Errorf("insert citation %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// ListReports returns the most recent reports first. A limit <= 0 returns all.
func (db *DB) ListReports(limit int) ([]ReportSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.conn.Query(
		`SELECT id, source, created_at, total_citations, verified_count, hallucinated_count, ambiguous_count, trust_score
		FROM reports ORDER BY created_at DESC, id LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var reports []ReportSummary
	for rows.Next() {
		var r ReportSummary
		var source sql.NullString
		var created string
		if err := rows.Scan(&r.ID, &source, &created, &r.TotalCitations, &r.VerifiedCount,
			&r.HallucinatedCount, &r.AmbiguousCount, &r.TrustScore); err != nil {
			return nil, err
		}
		r.Source = source.String
		if r.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return nil, fmt.Errorf("report %s: bad timestamp %q: %w", r.ID, created, err)
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// GetReport returns the stored report, or nil if id is unknown.
func (db *DB) GetReport(id string) (*model.AnalysisReport, error) {
	var payload string
	err := db.conn.QueryRow("SELECT report_json FROM reports WHERE id = ?", id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var report model.AnalysisReport
	if err := json.Unmarshal([]byte(payload), &report); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", id, err)
	}
	return &report, nil
}

// VerdictCounts returns how many stored citations carry each verdict
func (db *DB) VerdictCounts() (map[model.Verdict]int, error) {
	rows, err := db.conn.Query("SELECT verdict, COUNT(*) FROM citations GROUP BY verdict")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[model.Verdict]int)
	for rows.Next() {
		var verdict string
		var n int
		if err := rows.Scan(&verdict, &n); err != nil {
			return nil, err
		}
		counts[model.Verdict(verdict)] = n
	}
	return counts, rows.Err()
}

// DeleteReport removes a report and its citations
func (db *DB) DeleteReport(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM citations WHERE report_id = ?", id); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM reports WHERE id = ?", id); err != nil {
		return err
	}
	return tx.Commit()
}
