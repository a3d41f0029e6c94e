package invitation

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshal_Aliases(t *testing.T) {
	body := `{
		"id": "inv-9",
		"tenantId": "t-3",
		"resourceName": "Globex",
		"email": "x@y.com",
		"inviterEmail": "boss@y.com",
		"role": "TENANT_ADMIN",
		"projects": [{"id": "p-1", "name": "Alpha"}, {"id": "p-2", "name": "Beta"}],
		"token": "tok-9",
		"expiresAt": "2026-04-01T10:30:00"
	}`
	var inv Invitation
	require.NoError(t, json.Unmarshal([]byte(body), &inv))

	assert.Equal(t, "Globex", inv.TenantName)
	assert.Equal(t, "x@y.com", inv.InvitedEmail)
	assert.Equal(t, "boss@y.com", inv.InvitedByEmail)
	assert.Equal(t, []string{"p-1", "p-2"}, inv.ProjectIDs)
	assert.Equal(t, StatusPending, inv.Status, "missing status reads as pending")
	assert.Equal(t, time.Date(2026, 4, 1, 10, 30, 0, 0, time.UTC), inv.ExpiresAt)
}

func TestUnmarshal_ProjectIDsWinOverProjects(t *testing.T) {
	body := `{"token":"t","role":"tenant_user","projectIds":["a","a","b"],"projects":[{"id":"z"}],"status":"accepted","expiresAt":"2026-04-01T10:30:00Z"}`
	var inv Invitation
	require.NoError(t, json.Unmarshal([]byte(body), &inv))
	assert.Equal(t, []string{"a", "b"}, inv.ProjectIDs)
	assert.Equal(t, StatusAccepted, inv.Status)
	assert.Equal(t, "TENANT_USER", inv.Role)
}

func TestUnmarshal_RoleMustBeATenantRole(t *testing.T) {
	for _, role := range []string{`""`, `null`, `"OWNER"`, `"PROJECT_MEMBER"`} {
		var inv Invitation
		err := json.Unmarshal([]byte(`{"id":"inv-1","token":"t","role":`+role+`}`), &inv)
		assert.Error(t, err, role)
	}
	var inv Invitation
	require.NoError(t, json.Unmarshal([]byte(`{"token":"t","role":" tenant_admin "}`), &inv))
	assert.Equal(t, "TENANT_ADMIN", inv.Role)
}

func TestUnmarshal_Times(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Time
	}{
		{raw: `1775039400000`, want: time.UnixMilli(1775039400000).UTC()},
		{raw: `"2026-04-01T10:30:00.123456"`, want: time.Date(2026, 4, 1, 10, 30, 0, 123456000, time.UTC)},
		{raw: `"2026-04-01T12:30:00+02:00"`, want: time.Date(2026, 4, 1, 10, 30, 0, 0, time.UTC)},
		{raw: `null`},
		{raw: `[2030,1,1,0,0]`, want: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)},
		{raw: `[2026,4,1,10,30,15,500]`, want: time.Date(2026, 4, 1, 10, 30, 15, 500, time.UTC)},
	}
	for _, tc := range cases {
		var inv Invitation
		require.NoError(t, json.Unmarshal([]byte(`{"role":"TENANT_USER","expiresAt":`+tc.raw+`}`), &inv), tc.raw)
		assert.True(t, tc.want.Equal(inv.ExpiresAt), "%s: got %v", tc.raw, inv.ExpiresAt)
	}

	for _, bad := range []string{`"next tuesday"`, `[2030]`, `[2030,13,1]`} {
		var inv Invitation
		assert.Error(t, json.Unmarshal([]byte(`{"role":"TENANT_USER","expiresAt":`+bad+`}`), &inv), bad)
	}
}

func TestDecodeList_KeepsGoodItems(t *testing.T) {
	body := `[
		{"id":"inv-1","token":"a","role":"TENANT_USER","expiresAt":[2030,1,1,0,0]},
		{"id":"inv-2","token":"b","role":"TENANT_USER","expiresAt":"soon"},
		{"id":"inv-3","token":"c","role":"OWNER"},
		{"id":"inv-4","token":"d","role":"TENANT_ADMIN"}
	]`
	var items []json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(body), &items))

	good, bad := DecodeList(items)
	require.Len(t, good, 2)
	assert.Equal(t, "a", good[0].Token)
	assert.Equal(t, "d", good[1].Token)
	require.Len(t, bad, 2)
	assert.Contains(t, bad[0].Error(), "item 1")
	assert.Contains(t, bad[1].Error(), "item 2")
}

func TestMarshal_ProjectIDsAlwaysArray(t *testing.T) {
	b, err := json.Marshal(Invitation{Token: "t", ProjectIDs: []string{}})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"projectIds":[]`)
}
