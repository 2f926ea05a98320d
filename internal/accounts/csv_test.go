package accounts

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/releve-dev/releve/internal/model"
)

func TestRoundTrip(t *testing.T) {
	accounts := []model.Account{
		{ID: "courant", Name: "Compte courant", Type: model.AccountTypeChecking, Currency: "EUR", LastFour: "4821", IsDefault: true},
		{ID: "visa", Name: "Carte Visa", Type: model.AccountTypeCard, Currency: "EUR"},
	}

	var buf bytes.Buffer
	err := WriteAccounts(&buf, accounts)
	require.NoError(t, err)

	got, err := ReadAccounts(&buf)
	require.NoError(t, err)
	assert.Equal(t, accounts, got)
}

func TestReadAccounts_Header(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteAccounts(&buf, nil))
	assert.Equal(t, "account_id,name,type,currency,last_four,is_default\n", buf.String())

	got, err := ReadAccounts(&buf)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadAccounts_Errors(t *testing.T) {
	tests := []struct {
		name string
		csv  string
		want string
	}{
		{"bad bool", "account_id,name,type,currency,last_four,is_default\nx,X,checking,EUR,,maybe\n", "parsing is_default"},
		{"empty id", "account_id,name,type,currency,last_four,is_default\n,X,checking,EUR,,false\n", "empty account_id"},
		{"field count", "account_id,name,type,currency,last_four,is_default\nx,X\n", "reading accounts CSV"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadAccounts(strings.NewReader(tt.csv))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDefaultAccounts(t *testing.T) {
	accts := DefaultAccounts("")
	require.Len(t, accts, 2)

	defaults := 0
	for _, a := range accts {
		assert.NotEmpty(t, a.ID)
		assert.NotEmpty(t, a.Name)
		assert.Equal(t, "EUR", a.Currency)
		if a.IsDefault {
			defaults++
		}
	}
	assert.Equal(t, 1, defaults)
	assert.Equal(t, "CHF", DefaultAccounts("CHF")[0].Currency)
}
