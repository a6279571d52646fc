package wsclient

import (
	"context"
	"fmt"
	"iter"
	"reflect"

	"github.com/taosdata/taosws-go/common"
	"github.com/taosdata/taosws-go/common/raw"
)

// ResultSet streams blocks from a row-producing query. Each call to
// NextBlock requests the next block from the server and blocks until it
// arrives (or the result is exhausted); row-level iteration is layered on
// top via Next/Scan.
type ResultSet struct {
	cl  *Client
	id  uint64

	isUpdate     bool
	affectedRows int

	fields    []common.Field
	precision common.Precision

	fetchCh chan fetchMessage
	done    bool
	closed  bool

	block    *raw.RawBlock
	blockRow int

	rowsErr error
}

// Fields describes the result's columns, in order.
func (rs *ResultSet) Fields() []common.Field { return rs.fields }

// Precision is the timestamp precision of every Timestamp column in this
// result.
func (rs *ResultSet) Precision() common.Precision { return rs.precision }

// NextBlock fetches the next columnar block, or returns (nil, nil) once
// the result set is exhausted. It is safe to keep calling after
// exhaustion; it simply keeps returning (nil, nil).
func (rs *ResultSet) NextBlock(ctx context.Context) (*raw.RawBlock, error) {
	if rs.done {
		return nil, nil
	}
	if rs.closed {
		return nil, ErrClosed
	}

	if err := rs.cl.c.sendJSON(ctx, request{Action: actionFetch, Args: resArgs{ReqID: rs.cl.nextReqID(), ID: rs.id}}); err != nil {
		return nil, err
	}
	fm, err := waitFetch(ctx, rs.fetchCh, rs.cl.timeout)
	if err != nil {
		return nil, err
	}
	if fm.reply == nil {
		return nil, fmt.Errorf("wsclient: fetch reply missing: %w", ErrUnexpectedReply)
	}
	if err := fm.reply.asError(); err != nil {
		return nil, err
	}
	if fm.reply.Completed {
		rs.done = true
		return nil, nil
	}
	rows := fm.reply.Rows
	lengths := fm.reply.Lengths

	if err := rs.cl.c.sendJSON(ctx, request{Action: actionFetchRaw, Args: resArgs{ReqID: rs.cl.nextReqID(), ID: rs.id}}); err != nil {
		return nil, err
	}
	bm, err := waitFetch(ctx, rs.fetchCh, rs.cl.timeout)
	if err != nil {
		return nil, err
	}
	if bm.block == nil {
		return nil, fmt.Errorf("wsclient: fetch_block reply missing binary payload: %w", ErrUnexpectedReply)
	}

	if bm.isV2 {
		return raw.DecodeV2(bm.block, rs.fields, lengths, rows, rs.precision)
	}
	return raw.DecodeV3(bm.block, rows, len(rs.fields), rs.precision)
}

// Next advances to the next row, fetching additional blocks as needed.
// It returns false once the result set is exhausted.
func (rs *ResultSet) Next(ctx context.Context) (bool, error) {
	for rs.block == nil || rs.blockRow >= rs.block.NRows() {
		blk, err := rs.NextBlock(ctx)
		if err != nil {
			return false, err
		}
		if blk == nil {
			return false, nil
		}
		rs.block = blk
		rs.blockRow = 0
	}
	return true, nil
}

// Row returns the current row's values, in column order. Call only after
// Next has returned true.
func (rs *ResultSet) Row() []any {
	row := rs.block.Row(rs.blockRow)
	rs.blockRow++
	return row
}

// Rows returns an iterator over every row as a slice of typed values, in
// column order. Iteration stops early if the caller's range body breaks,
// or once the result set is exhausted; any fetch error is surfaced to the
// caller via RowsErr after iteration ends.
func (rs *ResultSet) Rows(ctx context.Context) iter.Seq[[]any] {
	return func(yield func([]any) bool) {
		for {
			ok, err := rs.Next(ctx)
			if err != nil {
				rs.rowsErr = err
				return
			}
			if !ok {
				return
			}
			if !yield(rs.Row()) {
				return
			}
		}
	}
}

// RowsErr returns the error (if any) that stopped the most recent Rows
// iteration early.
func (rs *ResultSet) RowsErr() error { return rs.rowsErr }

// Scan copies the current row's values into dest, in column order,
// following the same "pointer per destination" convention as
// database/sql's Rows.Scan. Call only after Next has returned true.
func (rs *ResultSet) Scan(dest ...any) error {
	row := rs.block.Row(rs.blockRow)
	rs.blockRow++
	if len(dest) != len(row) {
		return fmt.Errorf("wsclient: Scan expected %d destinations, got %d: %w", len(row), len(dest), ErrUnexpectedReply)
	}
	for i, v := range row {
		if err := scanInto(dest[i], v); err != nil {
			return fmt.Errorf("wsclient: Scan column %d: %w", i, err)
		}
	}
	return nil
}

func scanInto(dest, v any) error {
	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Ptr || dv.IsNil() {
		return fmt.Errorf("wsclient: Scan destination must be a non-nil pointer")
	}
	elem := dv.Elem()
	if v == nil {
		elem.Set(reflect.Zero(elem.Type()))
		return nil
	}
	rv := reflect.ValueOf(v)
	if !rv.Type().AssignableTo(elem.Type()) {
		if rv.Type().ConvertibleTo(elem.Type()) {
			elem.Set(rv.Convert(elem.Type()))
			return nil
		}
		return fmt.Errorf("wsclient: cannot scan %T into %s", v, elem.Type())
	}
	elem.Set(rv)
	return nil
}

// AffectedRows is the number of rows an Exec-style statement touched.
// Meaningless for a row-producing result.
func (rs *ResultSet) AffectedRows() int { return rs.affectedRows }

// IsUpdate reports whether this result came from a non-row-producing
// statement (DDL/DML), in which case only AffectedRows is meaningful.
func (rs *ResultSet) IsUpdate() bool { return rs.isUpdate }

// Close releases the result set on the server. Safe to call more than
// once.
func (rs *ResultSet) Close() error {
	if rs.closed {
		return nil
	}
	rs.closed = true
	if rs.fetchCh != nil {
		rs.cl.c.unregisterFetch(rs.id)
	}
	ctx := context.Background()
	return rs.cl.c.sendJSON(ctx, request{Action: actionClose, Args: resArgs{ReqID: rs.cl.nextReqID(), ID: rs.id}})
}
