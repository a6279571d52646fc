package wsclient

// TMQ is the server's message-queue-style subscription surface: a third
// URL suffix (".../rest/tmq") alongside the query and statement endpoints
// (this client dials only the query one), carrying the same binary raw-block payloads as a
// query result but framed as polled consumer messages instead of a
// fetch-driven result set.
//
// This client does not implement a TMQ consumer — no Subscribe/Poll/Commit
// surface, no consumer group or offset bookkeeping. It's noted here only so
// the shape of that third endpoint has a home instead of being silently
// absent from the package.
