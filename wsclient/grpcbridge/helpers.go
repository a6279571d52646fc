package grpcbridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/taosdata/taosws-go/wsclient"
)

// collectRows runs sql to completion and buffers every row. Only used by
// RPCs that need the whole result at once (Query, QueryDuration); Fetch
// streams block by block instead.
func collectRows(ctx context.Context, cl *wsclient.Client, sql string) ([][]any, error) {
	rs, err := cl.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rs.Close()

	var rows [][]any
	for row := range rs.Rows(ctx) {
		rows = append(rows, row)
	}
	if err := rs.RowsErr(); err != nil {
		return nil, err
	}
	return rows, nil
}

func marshalRows(rows [][]any) ([]byte, error) {
	data, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("grpcbridge: marshal rows: %w", err)
	}
	return data, nil
}
