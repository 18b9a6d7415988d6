// Package trending persists resolved queries and topic sightings and
// serves the aggregated trending view.
package trending

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/roasbeef/smaart/internal/db"
)

// sqlSchemas is an embedded file system containing the SQL migration
// files. The migrations are embedded at compile time for portability.
//
//go:embed migrations/*.sql
var sqlSchemas embed.FS

// LatestMigrationVersion is the latest migration version of the
// trending schema.
//
// NOTE: This MUST be updated when a new migration is added.
const LatestMigrationVersion uint = 1

// Topic is one aggregated trending topic.
type Topic struct {
	// Topic is the topic text.
	Topic string `json:"topic"`

	// Count is the number of sightings inside the window.
	Count int `json:"count"`

	// Sentiment is the mean compound sentiment across sightings,
	// in [-1, 1].
	Sentiment float64 `json:"sentiment"`

	// Sources are the distinct sources the topic was seen in.
	Sources []string `json:"sources"`
}

// Resolution is the slice of a finished resolution the store records.
type Resolution struct {
	QueryText        string
	Hours            int
	Source           string
	ItemCount        int
	Confidence       float64
	ProcessingTimeMS int64

	// Topics are the topic sightings extracted from the resolution:
	// the query itself plus any entities the enrichment produced.
	Topics []string

	// Sentiment is the compound sentiment attached to each
	// sighting.
	Sentiment float64
}

// Store provides access to the trending tables.
type Store struct {
	db  *sql.DB
	log *slog.Logger

	now func() time.Time
}

// NewStore wraps a database connection and brings the trending schema
// up to date.
func NewStore(sqlDB *sql.DB, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}

	err := db.ApplyMigrations(
		sqlDB, sqlSchemas, "migrations", "trending",
		LatestMigrationVersion, log,
	)
	if err != nil {
		return nil, fmt.Errorf("migrate trending schema: %w", err)
	}

	return &Store{
		db:  sqlDB,
		log: log.With("component", "trending"),
		now: time.Now,
	}, nil
}

// RecordResolution persists one successful resolution: the query log
// row plus a sighting per topic. Failures are the caller's to log;
// recording never blocks a response.
func (s *Store) RecordResolution(ctx context.Context, res Resolution) error {
	now := s.now().Unix()

	return db.ExecTx(ctx, s.db, s.log, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO resolved_queries
			     (query_text, hours, source, item_count, confidence,
			      processing_time_ms, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			res.QueryText, res.Hours, res.Source, res.ItemCount,
			res.Confidence, res.ProcessingTimeMS, now,
		)
		if err != nil {
			return fmt.Errorf("insert resolved query: %w", err)
		}

		for _, topic := range res.Topics {
			topic = strings.TrimSpace(topic)
			if topic == "" {
				continue
			}

			_, err = tx.ExecContext(ctx,
				`INSERT INTO topic_sightings
				     (topic, source, sentiment, seen_at)
				 VALUES (?, ?, ?, ?)`,
				topic, res.Source, res.Sentiment, now,
			)
			if err != nil {
				return fmt.Errorf(
					"insert topic sighting: %w", err)
			}
		}

		return nil
	})
}

// TopTopics returns the most-sighted topics inside the trailing window,
// ordered by sighting count.
func (s *Store) TopTopics(ctx context.Context, limit, hours int) ([]Topic,
	error) {

	if limit <= 0 {
		limit = 10
	}
	if hours <= 0 {
		hours = 24
	}
	cutoff := s.now().Add(-time.Duration(hours) * time.Hour).Unix()

	rows, err := s.db.QueryContext(ctx,
		`SELECT topic, COUNT(*) AS sightings, AVG(sentiment),
		        GROUP_CONCAT(DISTINCT source)
		 FROM topic_sightings
		 WHERE seen_at >= ?
		 GROUP BY topic
		 ORDER BY sightings DESC, topic ASC
		 LIMIT ?`,
		cutoff, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query trending topics: %w", err)
	}
	defer rows.Close()

	var topics []Topic
	for rows.Next() {
		var (
			t       Topic
			sources string
		)
		if err := rows.Scan(
			&t.Topic, &t.Count, &t.Sentiment, &sources,
		); err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}

		if sources != "" {
			t.Sources = strings.Split(sources, ",")
		}
		topics = append(topics, t)
	}

	return topics, rows.Err()
}

// QueryCount returns the number of resolutions logged inside the
// trailing window. Used by the health endpoint.
func (s *Store) QueryCount(ctx context.Context, hours int) (int, error) {
	cutoff := s.now().Add(-time.Duration(hours) * time.Hour).Unix()

	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM resolved_queries WHERE created_at >= ?`,
		cutoff,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count resolved queries: %w", err)
	}

	return n, nil
}
