package wsclient

import (
	"encoding/json"
	"fmt"
)

// action is the wire tag of every request/reply envelope: `{"action":
// "...", "args": {...}}` for requests, `{"action": "...", <fields...>}`
// for replies (the reply shape is flatter than the request's, so it gets
// its own struct rather than reusing request's).
type action string

const (
	actionVersion   action = "version"
	actionConn      action = "conn"
	actionQuery     action = "query"
	actionFetch     action = "fetch"
	actionFetchRaw  action = "fetch_block"
	actionWriteMeta action = "write_meta"
	actionClose     action = "close"
)

type request struct {
	Action action `json:"action"`
	Args   any    `json:"args"`
}

func (r request) marshal() ([]byte, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("wsclient: marshal %s request: %w", r.Action, err)
	}
	return b, nil
}

type connArgs struct {
	ReqID    uint64 `json:"req_id"`
	User     string `json:"user,omitempty"`
	Password string `json:"password,omitempty"`
	DB       string `json:"db,omitempty"`
}

type queryArgs struct {
	ReqID uint64 `json:"req_id"`
	SQL   string `json:"sql"`
}

type resArgs struct {
	ReqID uint64 `json:"req_id"`
	ID    uint64 `json:"id"`
}

// reply is the union of every JSON reply shape this client understands.
// Fields not relevant to a given action's reply are simply left zero.
type reply struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	ReqID   uint64 `json:"req_id"`
	Action  action `json:"action"`

	// version reply
	Version string `json:"version"`

	// conn reply carries no extra fields beyond code/message.

	// query reply
	ID            uint64   `json:"id"`
	IsUpdate      bool     `json:"is_update"`
	AffectedRows  int      `json:"affected_rows"`
	FieldsCount   int      `json:"fields_count"`
	FieldsNames   []string `json:"fields_names"`
	FieldsTypes   []uint16 `json:"fields_types"`
	FieldsLengths []uint32 `json:"fields_lengths"`
	Precision     uint8    `json:"precision"`

	// fetch reply
	Completed bool     `json:"completed"`
	Rows      int      `json:"rows"`
	Lengths   []uint32 `json:"lengths"`
}

func (r reply) asError() error {
	if r.Code == 0 {
		return nil
	}
	return &ServerError{Code: r.Code, Message: r.Message}
}
