package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// upstreamError is implemented by transport errors that carry the status a
// remote service answered with (commerce backend, payment provider).
type upstreamError interface {
	error
	UpstreamStatus() int
	UpstreamOperation() string
}

// ErrorDump is the log-side view of an error: everything WriteError keeps
// out of the public envelope.
type ErrorDump struct {
	TopMessage string   `json:"top_message"`
	Code       Code     `json:"code,omitempty"`
	Chain      []string `json:"chain,omitempty"`

	UpstreamOp     string `json:"upstream_op,omitempty"`
	UpstreamStatus int    `json:"upstream_status,omitempty"`

	Postgres *PostgresDump `json:"postgres,omitempty"`
}

type PostgresDump struct {
	Code       string `json:"code"`
	Message    string `json:"message,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Table      string `json:"table,omitempty"`
	Constraint string `json:"constraint,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{TopMessage: err.Error(), Code: CodeOf(err)}
	if As(err) == nil {
		d.Code = ""
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var upstream upstreamError
	if errors.As(err, &upstream) {
		d.UpstreamOp = upstream.UpstreamOperation()
		d.UpstreamStatus = upstream.UpstreamStatus()
	}
	d.Postgres = postgresDump(err)
	return d
}

// Fields flattens the dump for structured logging, skipping empty parts.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{"error": d.TopMessage}
	if d.Code != "" {
		fields["error_code"] = string(d.Code)
	}
	if len(d.Chain) > 1 {
		fields["error_chain"] = d.Chain
	}
	if d.UpstreamOp != "" {
		fields["upstream_op"] = d.UpstreamOp
		fields["upstream_status"] = d.UpstreamStatus
	}
	if d.Postgres != nil {
		fields["pg_code"] = d.Postgres.Code
		fields["pg_message"] = d.Postgres.Message
		if d.Postgres.Constraint != "" {
			fields["pg_constraint"] = d.Postgres.Constraint
		}
		if d.Postgres.Table != "" {
			fields["pg_table"] = d.Postgres.Table
		}
	}
	return fields
}

// postgresDump reads driver errors from either pgx (runtime pool) or lib/pq
// (goose migrations).
func postgresDump(err error) *PostgresDump {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return &PostgresDump{
			Code:       pgxErr.Code,
			Message:    pgxErr.Message,
			Detail:     pgxErr.Detail,
			Table:      pgxErr.TableName,
			Constraint: pgxErr.ConstraintName,
		}
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return &PostgresDump{
			Code:       string(pqErr.Code),
			Message:    pqErr.Message,
			Detail:     pqErr.Detail,
			Table:      pqErr.Table,
			Constraint: pqErr.Constraint,
		}
	}
	return nil
}
