package admin

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/jathurchan/proknow/client"
	"github.com/jathurchan/proknow/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdmin(t *testing.T) (*Admin, *httpmock.MockTransport) {
	t.Helper()
	requestor, transport := testutil.NewMockRequestor(t)
	return New(requestor), transport
}

func TestUsers_CRUD(t *testing.T) {
	a, transport := newTestAdmin(t)
	ctx := context.Background()

	transport.RegisterResponder(http.MethodGet, testutil.BaseURL+"/users",
		httpmock.NewStringResponder(http.StatusOK, `[{"id":"u1","email":"jane@example.com","name":"Jane","active":true}]`))
	transport.RegisterResponder(http.MethodGet, testutil.BaseURL+"/users/u1",
		httpmock.NewStringResponder(http.StatusOK, `{"id":"u1","email":"jane@example.com","name":"Jane","active":true,"role_id":"r1"}`))
	transport.RegisterResponder(http.MethodPost, testutil.BaseURL+"/users",
		func(req *http.Request) (*http.Response, error) {
			var body UserRequest
			testutil.DecodeJSON(t, req, &body)
			assert.Equal(t, "sam@example.com", body.Email)
			assert.Nil(t, body.Active)
			return httpmock.NewJsonResponse(http.StatusOK, User{ID: "u2", Email: body.Email, Name: body.Name, Active: true})
		})
	transport.RegisterResponder(http.MethodPut, testutil.BaseURL+"/users/u1",
		func(req *http.Request) (*http.Response, error) {
			var body UserRequest
			testutil.DecodeJSON(t, req, &body)
			require.NotNil(t, body.Active)
			assert.False(t, *body.Active)
			return httpmock.NewStringResponse(http.StatusNoContent, ""), nil
		})
	transport.RegisterResponder(http.MethodDelete, testutil.BaseURL+"/users/u2",
		httpmock.NewStringResponder(http.StatusNoContent, ""))

	users, err := a.Users.Query(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)

	user, err := a.Users.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "r1", user.RoleID)

	created, err := a.Users.Create(ctx, UserRequest{Email: "sam@example.com", Name: "Sam"})
	require.NoError(t, err)
	assert.Equal(t, "u2", created.ID)

	user.Active = false
	require.NoError(t, a.Users.Update(ctx, user))
	require.NoError(t, a.Users.Delete(ctx, created.ID))
	assert.Equal(t, 5, transport.GetTotalCallCount())
}

func TestRoles_CRUD(t *testing.T) {
	a, transport := newTestAdmin(t)
	ctx := context.Background()

	transport.RegisterResponder(http.MethodPost, testutil.BaseURL+"/roles",
		func(req *http.Request) (*http.Response, error) {
			var body RoleRequest
			testutil.DecodeJSON(t, req, &body)
			assert.True(t, body.Permissions["manage_access"])
			return httpmock.NewJsonResponse(http.StatusOK, Role{ID: "r1", Name: body.Name, Permissions: body.Permissions})
		})
	transport.RegisterResponder(http.MethodPut, testutil.BaseURL+"/roles/r1",
		httpmock.NewStringResponder(http.StatusNoContent, ""))
	transport.RegisterResponder(http.MethodDelete, testutil.BaseURL+"/roles/r1",
		httpmock.NewStringResponder(http.StatusNotFound, `{"error":"role not found"}`))

	role, err := a.Roles.Create(ctx, RoleRequest{Name: "Physicist", Permissions: map[string]bool{"manage_access": true}})
	require.NoError(t, err)
	assert.Equal(t, "Physicist", role.Name)

	role.Name = "Medical Physicist"
	require.NoError(t, a.Roles.Update(ctx, role))

	err = a.Roles.Delete(ctx, "r1")
	assert.ErrorIs(t, err, client.ErrNotFound)
	assert.ErrorContains(t, err, "failed to delete role r1")
}

func TestCustomMetrics_Resolve(t *testing.T) {
	a, transport := newTestAdmin(t)
	transport.RegisterResponder(http.MethodGet, testutil.BaseURL+"/metrics/custom",
		httpmock.NewStringResponder(http.StatusOK, `[
			{"id":"m1","name":"Genetic Type","context":"patient","type":{"enum":{"values":["A","B"]}}},
			{"id":"m2","name":"Fractions","context":"plan","type":{"number":{}}}
		]`))
	ctx := context.Background()

	byID, err := a.CustomMetrics.Resolve(ctx, "m2")
	require.NoError(t, err)
	assert.Equal(t, "Fractions", byID.Name)
	assert.NotNil(t, byID.Type.Number)

	byName, err := a.CustomMetrics.Resolve(ctx, "genetic type")
	require.NoError(t, err)
	assert.Equal(t, "m1", byName.ID)
	require.NotNil(t, byName.Type.Enum)
	assert.Equal(t, []string{"A", "B"}, byName.Type.Enum.Values)

	_, err = a.CustomMetrics.Resolve(ctx, "Stage")
	assert.ErrorIs(t, err, ErrMetricNotFound)
}

func TestCustomMetrics_UpdateSendsNameAndContextOnly(t *testing.T) {
	a, transport := newTestAdmin(t)
	transport.RegisterResponder(http.MethodPut, testutil.BaseURL+"/metrics/custom/m1",
		func(req *http.Request) (*http.Response, error) {
			var body map[string]any
			testutil.DecodeJSON(t, req, &body)
			assert.Equal(t, map[string]any{"name": "Genotype", "context": MetricContextPatient}, body)
			return httpmock.NewStringResponse(http.StatusNoContent, ""), nil
		})

	metric := &CustomMetric{ID: "m1", Name: "Genotype", Context: MetricContextPatient, Type: MetricType{String: &struct{}{}}}
	require.NoError(t, a.CustomMetrics.Update(context.Background(), metric))
}
