package vaccines

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/vetclinic-platform/internal/patients"
	"github.com/wolfman30/vetclinic-platform/internal/tenancy"
	"github.com/wolfman30/vetclinic-platform/pkg/logging"
)

func newRouter(t *testing.T) (http.Handler, *patients.Patient) {
	t.Helper()
	pats := patients.NewInMemoryRepository()
	rex := &patients.Patient{TenantID: "tenant-a", PetName: "Rex", Species: "dog", OwnerFirstName: "Ana", OwnerLastName: "Smith"}
	require.NoError(t, pats.Create(context.Background(), rex))

	h := NewHandler(NewInMemoryRepository(), pats, logging.Discard())
	h.now = func() time.Time { return time.Date(2030, 3, 1, 12, 0, 0, 0, time.UTC) }
	r := chi.NewRouter()
	r.Route("/patients/{patientID}/vaccines", h.PatientRoutes)
	r.Route("/vaccines", h.Routes)
	return r, rex
}

func doRequest(h http.Handler, tenantID, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req = req.WithContext(tenancy.WithTenantID(req.Context(), tenantID))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerCreateListDue(t *testing.T) {
	r, rex := newRouter(t)

	rec := doRequest(r, "tenant-a", http.MethodPost, "/patients/"+rex.ID+"/vaccines",
		`{"vaccine_name":"Rabies","date_given":"2029-03-10","next_due_date":"2030-03-10"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.True(t, created.IsDueSoon)
	require.NotNil(t, created.DaysUntilDue)
	assert.Equal(t, 9, *created.DaysUntilDue)

	rec = doRequest(r, "tenant-a", http.MethodPost, "/patients/"+rex.ID+"/vaccines",
		`{"vaccine_name":"DHPP","date_given":"2029-06-01","next_due_date":"2030-06-01"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doRequest(r, "tenant-a", http.MethodGet, "/patients/"+rex.ID+"/vaccines", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "DHPP", list[0].VaccineName)

	rec = doRequest(r, "tenant-a", http.MethodGet, "/vaccines/due", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Rabies", list[0].VaccineName)

	rec = doRequest(r, "tenant-a", http.MethodGet, "/vaccines/due?days=120", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 2)

	rec = doRequest(r, "tenant-b", http.MethodGet, "/vaccines/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(r, "tenant-a", http.MethodPatch, "/vaccines/"+created.ID, `{"next_due_date":"2029-01-01"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code, "due date before given date")

	rec = doRequest(r, "tenant-a", http.MethodPatch, "/vaccines/"+created.ID, `{"next_due_date":"2030-02-20"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var patched Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &patched))
	assert.True(t, patched.IsOverdue)

	rec = doRequest(r, "tenant-a", http.MethodDelete, "/vaccines/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHandlerRejectsForeignPatient(t *testing.T) {
	r, rex := newRouter(t)
	rec := doRequest(r, "tenant-b", http.MethodPost, "/patients/"+rex.ID+"/vaccines",
		`{"vaccine_name":"Rabies","date_given":"2029-03-10"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
