package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// LogFields flattens err into structured log fields: its code and reason,
// the wrap chain, and the server-side detail of a Postgres error when one is
// in the chain. Empty values are omitted.
func LogFields(err error) map[string]any {
	fields := map[string]any{}
	if err == nil {
		return fields
	}

	if typed := As(err); typed != nil {
		fields["error_code"] = typed.Code()
		if typed.Reason() != "" {
			fields["error_reason"] = typed.Reason()
		}
		if d, ok := typed.Details().(map[string]any); ok {
			if step, ok := d["step"]; ok {
				fields["step"] = step
			}
		}
	}

	var chain []string
	for e := err; e != nil; e = stdErrors.Unwrap(e) {
		chain = append(chain, fmt.Sprintf("%T", e))
	}
	if len(chain) > 1 {
		fields["error_chain"] = chain
	}

	for key, value := range postgresFields(err) {
		if value != "" {
			fields[key] = value
		}
	}
	return fields
}

func postgresFields(err error) map[string]string {
	var pgxErr *pgconn.PgError
	if stdErrors.As(err, &pgxErr) {
		return map[string]string{
			"pg_code":       pgxErr.Code,
			"pg_constraint": pgxErr.ConstraintName,
			"pg_table":      pgxErr.TableName,
			"pg_detail":     pgxErr.Detail,
		}
	}
	var pqErr *pq.Error
	if stdErrors.As(err, &pqErr) {
		return map[string]string{
			"pg_code":       string(pqErr.Code),
			"pg_constraint": pqErr.Constraint,
			"pg_table":      pqErr.Table,
			"pg_detail":     pqErr.Detail,
		}
	}
	return nil
}
