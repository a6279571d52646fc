package dsn

import "testing"

func ptr[T any](v T) *T { return &v }

func TestUsernameWithPassword(t *testing.T) {
	cases := []struct {
		in   string
		want *Dsn
		out  string
	}{
		{"taos://", &Dsn{Driver: "taos", Params: map[string]string{}}, "taos://"},
		{"taos:///", &Dsn{Driver: "taos", Params: map[string]string{}}, "taos://"},
		{"taos://root@", &Dsn{Driver: "taos", Username: ptr("root"), Params: map[string]string{}}, "taos://root@"},
		{"taos://root:taosdata@", &Dsn{Driver: "taos", Username: ptr("root"), Password: ptr("taosdata"), Params: map[string]string{}}, "taos://root:taosdata@"},
	}
	for _, c := range cases {
		got, err := Parse(c.in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", c.in, err)
		}
		assertDsnEqual(t, c.in, got, c.want)
		if s := got.String(); s != c.out {
			t.Errorf("Parse(%q).String() = %q, want %q", c.in, s, c.out)
		}
	}
}

func TestHostPortMix(t *testing.T) {
	s := "taos://localhost"
	got, err := Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	want := &Dsn{Driver: "taos", Addresses: []Address{AddressFromHost("localhost")}, Params: map[string]string{}}
	assertDsnEqual(t, s, got, want)
	assertRoundTrip(t, s)

	s = "taos://root@:6030"
	got, err = Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	want = &Dsn{Driver: "taos", Username: ptr("root"), Addresses: []Address{{Port: ptr(uint16(6030))}}, Params: map[string]string{}}
	assertDsnEqual(t, s, got, want)
	assertRoundTrip(t, s)

	s = "taos://root@localhost:6030"
	got, err = Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	want = &Dsn{Driver: "taos", Username: ptr("root"), Addresses: []Address{NewAddress("localhost", 6030)}, Params: map[string]string{}}
	assertDsnEqual(t, s, got, want)
	assertRoundTrip(t, s)
}

func TestUsernameWithMultiAddresses(t *testing.T) {
	s := "taos://root@host1.domain:6030,host2.domain:6031"
	got, err := Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	want := &Dsn{
		Driver:   "taos",
		Username: ptr("root"),
		Addresses: []Address{
			NewAddress("host1.domain", 6030),
			NewAddress("host2.domain", 6031),
		},
		Params: map[string]string{},
	}
	assertDsnEqual(t, s, got, want)
	assertRoundTrip(t, s)
}

func TestDbOnly(t *testing.T) {
	s := "taos:///db1"
	got, err := Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	want := &Dsn{Driver: "taos", Database: ptr("db1"), Params: map[string]string{}}
	assertDsnEqual(t, s, got, want)
	assertRoundTrip(t, s)
}

func TestUsernameWithMultiAddressesDatabase(t *testing.T) {
	s := "taos://root@host1:6030,host2:6031/db1"
	got, err := Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	want := &Dsn{
		Driver:    "taos",
		Username:  ptr("root"),
		Database:  ptr("db1"),
		Addresses: []Address{NewAddress("host1", 6030), NewAddress("host2", 6031)},
		Params:    map[string]string{},
	}
	assertDsnEqual(t, s, got, want)
	assertRoundTrip(t, s)
}

func TestProtocol(t *testing.T) {
	s := "taos://root@tcp(host1:6030,host2:6031)/db1"
	got, err := Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	want := &Dsn{
		Driver:    "taos",
		Username:  ptr("root"),
		Database:  ptr("db1"),
		Protocol:  ptr("tcp"),
		Addresses: []Address{NewAddress("host1", 6030), NewAddress("host2", 6031)},
		Params:    map[string]string{},
	}
	assertDsnEqual(t, s, got, want)
	if out := got.String(); out != "taos+tcp://root@host1:6030,host2:6031/db1" {
		t.Errorf("String() = %q", out)
	}

	s2 := "taos+tcp://root@host1:6030,host2:6031/db1"
	got2, err := Parse(s2)
	if err != nil {
		t.Fatal(err)
	}
	assertDsnEqual(t, s2, got2, want)
	assertRoundTrip(t, s2)
}

func TestFragment(t *testing.T) {
	s := "postgresql://%2Fvar%2Flib%2Fpostgresql/dbname"
	got, err := Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	want := &Dsn{
		Driver:    "postgresql",
		Database:  ptr("dbname"),
		Addresses: []Address{{Path: ptr("/var/lib/postgresql")}},
		Params:    map[string]string{},
	}
	assertDsnEqual(t, s, got, want)
	assertRoundTrip(t, s)

	s = "unix:///path/to/unix.sock"
	got, err = Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	want = &Dsn{Driver: "unix", Fragment: ptr("/path/to/unix.sock"), Params: map[string]string{}}
	assertDsnEqual(t, s, got, want)
	assertRoundTrip(t, s)

	s = "sqlite:///c:/full/windows/path/to/file.db"
	got, err = Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	want = &Dsn{Driver: "sqlite", Fragment: ptr("/c:/full/windows/path/to/file.db"), Params: map[string]string{}}
	assertDsnEqual(t, s, got, want)
	assertRoundTrip(t, s)

	s = "sqlite://./file.db"
	got, err = Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	want = &Dsn{Driver: "sqlite", Fragment: ptr("./file.db"), Params: map[string]string{}}
	assertDsnEqual(t, s, got, want)
	assertRoundTrip(t, s)

	s = "sqlite://root:pass@/full/unix/path/to/file.db?mode=0666&readonly=true"
	got, err = Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	want = &Dsn{
		Driver:   "sqlite",
		Username: ptr("root"),
		Password: ptr("pass"),
		Fragment: ptr("/full/unix/path/to/file.db"),
		Params:   map[string]string{"mode": "0666", "readonly": "true"},
	}
	assertDsnEqual(t, s, got, want)
	assertRoundTrip(t, s)
}

func TestParams(t *testing.T) {
	s := "taos://?abc=abc"
	got, err := Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	want := &Dsn{Driver: "taos", Params: map[string]string{"abc": "abc"}}
	assertDsnEqual(t, s, got, want)
	assertRoundTrip(t, s)

	s = "taos://root@localhost?abc=abc"
	got, err = Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	want = &Dsn{
		Driver:    "taos",
		Username:  ptr("root"),
		Addresses: []Address{AddressFromHost("localhost")},
		Params:    map[string]string{"abc": "abc"},
	}
	assertDsnEqual(t, s, got, want)
	assertRoundTrip(t, s)
}

func TestTmqWsDriver(t *testing.T) {
	got, err := Parse("tmq+ws:///abc1?group.id=abc3&timeout=50ms")
	if err != nil {
		t.Fatal(err)
	}
	if got.Driver != "tmq" {
		t.Errorf("driver = %q, want tmq", got.Driver)
	}
}

func TestAddressParse(t *testing.T) {
	s := "taosdata:6030"
	a, err := ParseAddress(s)
	if err != nil {
		t.Fatal(err)
	}
	if a.String() != s {
		t.Errorf("String() = %q, want %q", a.String(), s)
	}

	path := "/var/lib/taos"
	encoded := new(addressEscaper).escape(path)
	a, err = ParseAddress(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if a.Path == nil || *a.Path != path {
		t.Errorf("Path = %v, want %q", a.Path, path)
	}
	if a.String() != encoded {
		t.Errorf("String() = %q, want %q", a.String(), encoded)
	}
}

type addressEscaper struct{}

func (addressEscaper) escape(s string) string {
	a := Address{Path: &s}
	return a.String()
}

func assertRoundTrip(t *testing.T, s string) {
	t.Helper()
	got, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q): %v", s, err)
	}
	if out := got.String(); out != s {
		t.Errorf("round trip %q -> %q", s, out)
	}
}

func assertDsnEqual(t *testing.T, in string, got, want *Dsn) {
	t.Helper()
	if got.Driver != want.Driver {
		t.Errorf("Parse(%q).Driver = %q, want %q", in, got.Driver, want.Driver)
	}
	if !strPtrEqual(got.Protocol, want.Protocol) {
		t.Errorf("Parse(%q).Protocol = %v, want %v", in, got.Protocol, want.Protocol)
	}
	if !strPtrEqual(got.Username, want.Username) {
		t.Errorf("Parse(%q).Username = %v, want %v", in, got.Username, want.Username)
	}
	if !strPtrEqual(got.Password, want.Password) {
		t.Errorf("Parse(%q).Password = %v, want %v", in, got.Password, want.Password)
	}
	if !strPtrEqual(got.Database, want.Database) {
		t.Errorf("Parse(%q).Database = %v, want %v", in, got.Database, want.Database)
	}
	if !strPtrEqual(got.Fragment, want.Fragment) {
		t.Errorf("Parse(%q).Fragment = %v, want %v", in, got.Fragment, want.Fragment)
	}
	if len(got.Addresses) != len(want.Addresses) {
		t.Fatalf("Parse(%q).Addresses = %+v, want %+v", in, got.Addresses, want.Addresses)
	}
	for i := range got.Addresses {
		if got.Addresses[i].String() != want.Addresses[i].String() {
			t.Errorf("Parse(%q).Addresses[%d] = %+v, want %+v", in, i, got.Addresses[i], want.Addresses[i])
		}
	}
	if want.Params == nil {
		want.Params = map[string]string{}
	}
	if len(got.Params) != len(want.Params) {
		t.Fatalf("Parse(%q).Params = %v, want %v", in, got.Params, want.Params)
	}
	for k, v := range want.Params {
		if got.Params[k] != v {
			t.Errorf("Parse(%q).Params[%q] = %q, want %q", in, k, got.Params[k], v)
		}
	}
}

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
