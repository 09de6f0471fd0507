package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAccountType(t *testing.T) {
	cases := []struct {
		in   string
		want AccountType
		ok   bool
	}{
		{"real", AccountTypeReal, true},
		{"REAL", AccountTypeReal, true},
		{"demo", AccountTypeDemo, true},
		{"Demo", AccountTypeDemo, true},
		{" DEMO ", AccountTypeDemo, true},
		{"tournament", 0, false},
		{"paper", 0, false},
		{"", 0, false},
	}

	for _, c := range cases {
		got, ok := ParseAccountType(c.in)
		assert.Equal(t, c.ok, ok, "输入 %q 的解析结果", c.in)
		if c.ok {
			assert.Equal(t, c.want, got, "输入 %q 的账户类型", c.in)
		}
	}
}

func TestAccountSnapshot_FindByID(t *testing.T) {
	snap := NewAccountSnapshot([]AccountRecord{
		{ID: 1, Type: AccountTypeReal, Amount: decimal.NewFromFloat(500)},
		{ID: 2, Type: AccountTypeDemo, Amount: decimal.NewFromFloat(10000)},
	})

	r, ok := snap.FindByID(2)
	require.True(t, ok)
	assert.Equal(t, AccountTypeDemo, r.Type)
	assert.True(t, r.Amount.Equal(decimal.NewFromFloat(10000)))

	_, ok = snap.FindByID(99)
	assert.False(t, ok)
}

func TestAccountSnapshot_FirstByType(t *testing.T) {
	snap := NewAccountSnapshot([]AccountRecord{
		{ID: 3, Type: AccountTypeTournament},
		{ID: 1, Type: AccountTypeReal},
		{ID: 2, Type: AccountTypeDemo},
		{ID: 4, Type: AccountTypeDemo},
	})

	r, ok := snap.FirstByType(AccountTypeDemo)
	require.True(t, ok)
	// 取快照顺序中的第一条
	assert.Equal(t, int64(2), r.ID)

	_, ok = snap.FirstByType(AccountTypeOther)
	assert.False(t, ok)
}

func TestAccountSnapshot_Tournaments(t *testing.T) {
	snap := NewAccountSnapshot([]AccountRecord{
		{ID: 1, Type: AccountTypeReal, Name: "Real", Amount: decimal.NewFromFloat(500)},
		{ID: 3, Type: AccountTypeTournament, TournamentName: "Weekly", Amount: decimal.NewFromFloat(250)},
		{ID: 2, Type: AccountTypeDemo, Name: "Demo", Amount: decimal.NewFromFloat(10000)},
	})

	ts := snap.Tournaments()
	require.Len(t, ts, 1)
	assert.Equal(t, int64(3), ts[0].ID)
	assert.Equal(t, "Weekly", ts[0].Name)
	assert.True(t, ts[0].Balance.Equal(decimal.NewFromFloat(250)))
}

func TestAccountSnapshot_DuplicateIDKeepsFirst(t *testing.T) {
	snap := NewAccountSnapshot([]AccountRecord{
		{ID: 1, Type: AccountTypeReal, Name: "first"},
		{ID: 1, Type: AccountTypeDemo, Name: "second"},
	})

	r, ok := snap.FindByID(1)
	require.True(t, ok)
	assert.Equal(t, "first", r.Name)
}
