/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package common

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hyperledger-labs/fabric-bnms/membership"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/db/driver"
	"github.com/hyperledger-labs/fabric-bnms/membership/services/logging"
	"github.com/pkg/errors"
	"go.uber.org/zap/zapcore"
)

var logger = logging.MustGetLogger("db", "sql")

type TableNames struct {
	Memberships     string
	PendingRequests string
}

// GetTableNames returns the table names with the passed prefix.
// The prefix must be made of letters, digits and underscores.
func GetTableNames(prefix string) (TableNames, error) {
	for _, r := range prefix {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return TableNames{}, errors.Errorf("invalid table prefix [%s]", prefix)
		}
	}
	return TableNames{
		Memberships:     prefix + "memberships",
		PendingRequests: prefix + "pending_requests",
	}, nil
}

// IsDuplicateFunc tells whether err reports the violation of a uniqueness constraint.
type IsDuplicateFunc func(err error) bool

// Store is the database/sql implementation of driver.Store. Queries use $n placeholders,
// understood by both sqlite and postgres.
type Store struct {
	db          *sql.DB
	table       TableNames
	isDuplicate IsDuplicateFunc
	now         func() time.Time
}

func NewStore(db *sql.DB, tables TableNames, isDuplicate IsDuplicateFunc) *Store {
	return &Store{db: db, table: tables, isDuplicate: isDuplicate, now: time.Now}
}

// Schema returns the statements creating the tables of the store.
func Schema(tables TableNames) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	bn_id TEXT NOT NULL,
	member_name TEXT NOT NULL,
	bn_name TEXT NOT NULL DEFAULT '',
	operator_name TEXT NOT NULL,
	status TEXT NOT NULL,
	issued BIGINT NOT NULL,
	modified BIGINT NOT NULL,
	tx_id TEXT NOT NULL,
	idx INT NOT NULL,
	payload TEXT NOT NULL,
	PRIMARY KEY (bn_id, member_name)
)`, tables.Memberships),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_status ON %s (bn_id, status)", tables.Memberships, tables.Memberships),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	member_name TEXT NOT NULL PRIMARY KEY,
	created_at BIGINT NOT NULL
)`, tables.PendingRequests),
	}
}

func (s *Store) CreateSchema() error {
	for _, stmt := range Schema(s.table) {
		logger.Debug(stmt)
		if _, err := s.db.Exec(stmt); err != nil {
			return errors.Wrapf(err, "failed creating schema [%s]", stmt)
		}
	}
	return nil
}

func (s *Store) Get(ctx context.Context, businessNetworkID, member string) (*membership.Record, error) {
	query := fmt.Sprintf("SELECT payload FROM %s WHERE bn_id = $1 AND member_name = $2", s.table.Memberships)
	logger.Debug(query, businessNetworkID, member)

	var payload string
	err := s.db.QueryRowContext(ctx, query, businessNetworkID, member).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed loading membership of [%s] in [%s]", member, businessNetworkID)
	}
	return decode(payload)
}

func (s *Store) List(ctx context.Context, filter driver.Filter) ([]*membership.Record, error) {
	where, args := filterWhere(filter)
	query := fmt.Sprintf("SELECT payload FROM %s WHERE %s ORDER BY member_name", s.table.Memberships, where)
	logger.Debug(query, args)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed listing memberships of [%s]", filter.BusinessNetworkID)
	}
	defer Close(rows)

	var res []*membership.Record
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, errors.Wrap(err, "failed scanning membership")
		}
		r, err := decode(payload)
		if err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	return res, errors.Wrap(rows.Err(), "failed iterating memberships")
}

func filterWhere(filter driver.Filter) (string, []interface{}) {
	conditions := []string{"bn_id = $1"}
	args := []interface{}{filter.BusinessNetworkID}
	if len(filter.Statuses) != 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			args = append(args, st.String())
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ", ")))
	}
	if len(filter.ExcludeMember) != 0 {
		args = append(args, filter.ExcludeMember)
		conditions = append(conditions, fmt.Sprintf("member_name <> $%d", len(args)))
	}
	return strings.Join(conditions, " AND "), args
}

func (s *Store) Upsert(ctx context.Context, record *membership.Record) (bool, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return false, errors.Wrap(err, "failed encoding membership")
	}
	st := record.State
	query := fmt.Sprintf("INSERT INTO %s (bn_id, member_name, bn_name, operator_name, status, issued, modified, tx_id, idx, payload) "+
		"VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) "+
		"ON CONFLICT (bn_id, member_name) DO UPDATE SET "+
		"bn_name = excluded.bn_name, operator_name = excluded.operator_name, status = excluded.status, "+
		"issued = excluded.issued, modified = excluded.modified, tx_id = excluded.tx_id, idx = excluded.idx, payload = excluded.payload "+
		"WHERE %s.modified < excluded.modified", s.table.Memberships, s.table.Memberships)
	if logger.IsEnabledFor(zapcore.DebugLevel) {
		logger.Debug(query, st.BusinessNetwork.ID, st.Member.Name, record.Ref)
	}

	res, err := s.db.ExecContext(ctx, query,
		st.BusinessNetwork.ID, st.Member.Name, st.BusinessNetwork.Name, st.BusinessNetwork.Operator.Name, st.Status.String(),
		st.Issued.UnixNano(), st.Modified.UnixNano(), record.Ref.TxID, record.Ref.Index, string(payload))
	if err != nil {
		return false, errors.Wrapf(err, "failed storing membership [%s]", record.Ref)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed reading affected rows")
	}
	return n > 0, nil
}

func (s *Store) CreatePendingRequest(ctx context.Context, member string) error {
	query := fmt.Sprintf("INSERT INTO %s (member_name, created_at) VALUES ($1, $2)", s.table.PendingRequests)
	logger.Debug(query, member)

	if _, err := s.db.ExecContext(ctx, query, member, s.now().UnixNano()); err != nil {
		if s.isDuplicate(err) {
			return errors.Wrapf(driver.ErrDuplicateKey, "pending request for [%s]", member)
		}
		return errors.Wrapf(err, "failed storing pending request for [%s]", member)
	}
	return nil
}

func (s *Store) DeletePendingRequest(ctx context.Context, member string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE member_name = $1", s.table.PendingRequests)
	logger.Debug(query, member)

	if _, err := s.db.ExecContext(ctx, query, member); err != nil {
		return errors.Wrapf(err, "failed deleting pending request for [%s]", member)
	}
	return nil
}

func (s *Store) Projections(ctx context.Context, businessNetworkID string) ([]membership.Projection, error) {
	query := fmt.Sprintf("SELECT member_name, bn_id, bn_name, operator_name, status FROM %s WHERE bn_id = $1 ORDER BY member_name", s.table.Memberships)
	logger.Debug(query, businessNetworkID)

	rows, err := s.db.QueryContext(ctx, query, businessNetworkID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed querying projections of [%s]", businessNetworkID)
	}
	defer Close(rows)

	var res []membership.Projection
	for rows.Next() {
		var p membership.Projection
		var status string
		if err := rows.Scan(&p.MemberName, &p.BusinessNetworkID, &p.BusinessNetworkName, &p.OperatorName, &status); err != nil {
			return nil, errors.Wrap(err, "failed scanning projection")
		}
		if p.Status, err = membership.ParseStatus(status); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, errors.Wrap(rows.Err(), "failed iterating projections")
}

func (s *Store) Close() error {
	return s.db.Close()
}

func decode(payload string) (*membership.Record, error) {
	r := &membership.Record{}
	if err := json.Unmarshal([]byte(payload), r); err != nil {
		return nil, errors.Wrap(err, "failed decoding membership")
	}
	return r, nil
}

type closer interface {
	Close() error
}

// Close closes c, logging the failure.
func Close(c closer) {
	if err := c.Close(); err != nil {
		logger.Warnf("failed closing: %s", err)
	}
}
