package matcher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/orderrisk/internal/model"
)

func sampleMatcher() *Matcher {
	return New(map[string]model.MappingEntry{
		"JOE'S PIZZA":   {CAMIS: "111", DBA: "JOE'S PIZZA", Boro: "Brooklyn"},
		"Shake Shack":   {CAMIS: "222", DBA: "SHAKE SHACK", Boro: "MANHATTAN"},
		"RedFarm - UWS": {CAMIS: "333", DBA: "REDFARM", Boro: "MANHATTAN"},
	})
}

func TestResolve(t *testing.T) {
	m := sampleMatcher()

	tests := []struct {
		name      string
		input     string
		wantCAMIS string
		wantOK    bool
	}{
		{"exact key", "JOE'S PIZZA", "111", true},
		{"suffix stripped", "Joe's Pizza - CLOSED", "111", true},
		{"case folded", "shake shack", "222", true},
		{"key suffix normalized", "RedFarm", "333", true},
		{"unknown", "Nobu", "", false},
		{"no partial match", "Joe's", "", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ok := m.Resolve(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantCAMIS, e.CAMIS)
		})
	}
}

func TestResolveNormalizesBorough(t *testing.T) {
	e, ok := sampleMatcher().Resolve("JOE'S PIZZA")
	require.True(t, ok)
	assert.Equal(t, model.BoroughBrooklyn, e.Boro)
}

func TestResolveIsPure(t *testing.T) {
	m := sampleMatcher()
	first, ok := m.Resolve("Shake Shack $0 Delivery Fee")
	require.True(t, ok)
	for range 100 {
		again, ok := m.Resolve("Shake Shack $0 Delivery Fee")
		require.True(t, ok)
		assert.Equal(t, first, again)
	}
}

func TestNewCollisionFirstSortedKeyWins(t *testing.T) {
	m := New(map[string]model.MappingEntry{
		"Joe's Pizza - CLOSED": {CAMIS: "999"},
		"JOE'S PIZZA":          {CAMIS: "111"},
		"No CAMIS":             {DBA: "NOTHING"},
	})
	e, ok := m.Resolve("joe's pizza")
	require.True(t, ok)
	// "JOE'S PIZZA" sorts before "Joe's Pizza - CLOSED".
	assert.Equal(t, "111", e.CAMIS)
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, []string{"111"}, m.CAMISes())
}

func TestBuildTable(t *testing.T) {
	m := sampleMatcher()
	orders := []model.Order{
		{OrderID: "1", RestaurantName: "Joe's Pizza - CLOSED"},
		{OrderID: "2", RestaurantName: "Joe's Pizza - CLOSED"},
		{OrderID: "3", RestaurantName: "Nobu"},
	}

	tbl := m.BuildTable(orders)
	assert.Len(t, tbl, 1)

	e, ok := tbl.Resolve("Joe's Pizza - CLOSED")
	require.True(t, ok)
	assert.Equal(t, "111", e.CAMIS)

	_, ok = tbl.Resolve("Nobu")
	assert.False(t, ok)
}

func TestUnmatched(t *testing.T) {
	m := sampleMatcher()
	orders := []model.Order{
		{RestaurantName: "Nobu", Cost: decimal.RequireFromString("10.50")},
		{RestaurantName: "Nobu", Cost: decimal.RequireFromString("4.50")},
		{RestaurantName: "Parm", Cost: decimal.RequireFromString("15.00")},
		{RestaurantName: "Balthazar", Cost: decimal.RequireFromString("30.25")},
		{RestaurantName: "Shake Shack", Cost: decimal.RequireFromString("99")},
	}

	got := Unmatched(orders, m)
	require.Len(t, got, 3)
	assert.Equal(t, UnmatchedName{RestaurantName: "Balthazar", OrderCount: 1, Revenue: 30.25}, got[0])
	// Nobu and Parm tie at 15.00; name ascending.
	assert.Equal(t, UnmatchedName{RestaurantName: "Nobu", OrderCount: 2, Revenue: 15}, got[1])
	assert.Equal(t, UnmatchedName{RestaurantName: "Parm", OrderCount: 1, Revenue: 15}, got[2])
}

func TestLoadFileJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mapping.json")
	content := `{
  "_comment": "curated by hand",
  "_meta": {"version": 2},
  "Joe's Pizza": {"camis": "111", "dba": "JOE'S PIZZA", "boro": "Brooklyn"},
  "Shake Shack": {"camis": "222", "dba": "SHAKE SHACK", "boro": "Manhattan"}
}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	m, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Len())

	e, ok := m.Resolve("JOE'S PIZZA - CLOSED")
	require.True(t, ok)
	assert.Equal(t, "111", e.CAMIS)
}

func TestLoadFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mapping.yaml")
	content := `
_source: manual
"Joe's Pizza":
  camis: "111"
  dba: JOE'S PIZZA
  boro: Brooklyn
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	m, err := LoadFile(path)
	require.NoError(t, err)

	e, ok := m.Resolve("joe's pizza")
	require.True(t, ok)
	assert.Equal(t, "111", e.CAMIS)
	assert.Equal(t, model.BoroughBrooklyn, e.Boro)
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read mapping")

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"A": "not an object"}`), 0o644))
	_, err = LoadFile(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse mapping")
}
