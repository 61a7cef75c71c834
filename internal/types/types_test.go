package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWalletAddress(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    WalletAddress
		wantErr bool
	}{
		{
			name:  "mixed case is lowercased",
			input: "0xAbCdEf0123456789aBcDeF0123456789ABCDEF01",
			want:  "0xabcdef0123456789abcdef0123456789abcdef01",
		},
		{
			name:  "surrounding whitespace is trimmed",
			input: "  0x1234567890123456789012345678901234567890 ",
			want:  "0x1234567890123456789012345678901234567890",
		},
		{name: "empty", input: "", wantErr: true},
		{name: "missing prefix", input: "1234567890123456789012345678901234567890", wantErr: true},
		{name: "too short", input: "0x1234", wantErr: true},
		{name: "non hex", input: "0xzz34567890123456789012345678901234567890", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseWalletAddress(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWalletAddress_Short(t *testing.T) {
	addr := WalletAddress("0x1234567890123456789012345678901234567890")
	assert.Equal(t, "0x1234...7890", addr.Short())
	assert.Equal(t, "0xabc", WalletAddress("0xabc").Short())
}

func TestWalletAddress_Checksum(t *testing.T) {
	addr := NormalizeAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	assert.Equal(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", addr.Checksum())
	assert.Equal(t, "0xabc", WalletAddress("0xabc").Checksum())
}

func TestRoleForStatus(t *testing.T) {
	assert.Equal(t, RolePending, RoleForStatus(StatusPending))
	assert.Equal(t, RoleApproved, RoleForStatus(StatusApproved))
	assert.Equal(t, RoleDenied, RoleForStatus(StatusDenied))
	assert.Equal(t, RoleConnected, RoleForStatus(StatusNone))
	assert.Equal(t, RoleConnected, RoleForStatus(StatusUnknown))
}

func TestParseRequestStatus(t *testing.T) {
	status, err := ParseRequestStatus(" Approved ")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, status)
	assert.True(t, status.IsResolved())

	_, err = ParseRequestStatus("archived")
	assert.Error(t, err)
}

func TestParseConnectorKind(t *testing.T) {
	kind, err := ParseConnectorKind("MetaMask")
	require.NoError(t, err)
	assert.Equal(t, ConnectorMetaMask, kind)

	_, err = ParseConnectorKind("phantom")
	assert.Error(t, err)
}
