package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Gowri7989009215/ehrb/internal/cache"
	"github.com/Gowri7989009215/ehrb/internal/database"
	"github.com/Gowri7989009215/ehrb/internal/models"
	"github.com/Gowri7989009215/ehrb/internal/repository"
	"github.com/Gowri7989009215/ehrb/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBCounter atomic.Int64

type testEnv struct {
	router   chi.Router
	consents *services.ConsentService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:handlers_test_%d?mode=memory&cache=shared", testDBCounter.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.AutoMigrate(db))

	prev := database.DB
	database.DB = db
	t.Cleanup(func() {
		database.DB = prev
		sqlDB.Close()
	})

	c := cache.NewMemoryCache()
	t.Cleanup(func() { c.Close() })

	auditSvc := services.NewAuditService(repository.NewAuditRepository())
	consentSvc := services.NewConsentService(repository.NewConsentRepository(), auditSvc, nil, c)
	accessSvc := services.NewAccessService(consentSvc, c)

	consentHandler := NewConsentHandler(consentSvc)
	accessHandler := NewAccessHandler(accessSvc, auditSvc)

	r := chi.NewRouter()
	r.Post("/consents/request", consentHandler.RequestAccess)
	r.Post("/consents/grant", consentHandler.Grant)
	r.Post("/consents/revoke", consentHandler.Revoke)
	r.Post("/consents/extend", consentHandler.Extend)
	r.Get("/consents/{id}", consentHandler.GetConsent)
	r.Get("/patients/{id}/consents", consentHandler.ListForPatient)
	r.Get("/access/check", accessHandler.Check)

	return &testEnv{router: r, consents: consentSvc}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func consentBody(patientID, doctorID uuid.UUID) map[string]interface{} {
	return map[string]interface{}{
		"patient_id": patientID,
		"doctor_id":  doctorID,
		"params": map[string]interface{}{
			"valid_until": time.Now().UTC().AddDate(0, 0, 30),
		},
	}
}

func TestRequestAccessEndpoint(t *testing.T) {
	env := newTestEnv(t)
	patient, doctor := uuid.New(), uuid.New()

	rec := env.do(t, http.MethodPost, "/consents/request", consentBody(patient, doctor))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var consent models.ConsentGrant
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &consent))
	assert.Equal(t, models.ConsentStatusPending, consent.Status)
	assert.Equal(t, patient, consent.PatientID)

	// Same pair again is a conflict.
	rec = env.do(t, http.MethodPost, "/consents/request", consentBody(patient, doctor))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRequestAccessValidation(t *testing.T) {
	env := newTestEnv(t)

	body := map[string]interface{}{
		"patient_id": uuid.New(),
		"doctor_id":  uuid.New(),
		"params":     map[string]interface{}{},
	}
	rec := env.do(t, http.MethodPost, "/consents/request", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "valid_until")
}

func TestGrantAndRevokeEndpoints(t *testing.T) {
	env := newTestEnv(t)
	patient, doctor := uuid.New(), uuid.New()

	rec := env.do(t, http.MethodPost, "/consents/grant", consentBody(patient, doctor))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var consent models.ConsentGrant
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &consent))
	assert.Equal(t, models.ConsentStatusGranted, consent.Status)

	rec = env.do(t, http.MethodPost, "/consents/revoke", map[string]interface{}{
		"patient_id": patient,
		"doctor_id":  doctor,
		"reason":     "no longer my doctor",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &consent))
	assert.Equal(t, models.ConsentStatusRevoked, consent.Status)

	// Revoking a revoked consent is a 404.
	rec = env.do(t, http.MethodPost, "/consents/revoke", map[string]interface{}{
		"patient_id": patient,
		"doctor_id":  doctor,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetConsentEndpoint(t *testing.T) {
	env := newTestEnv(t)
	patient, doctor := uuid.New(), uuid.New()

	rec := env.do(t, http.MethodPost, "/consents/grant", consentBody(patient, doctor))
	require.Equal(t, http.StatusOK, rec.Code)
	var created models.ConsentGrant
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = env.do(t, http.MethodGet, "/consents/"+created.ID.String(), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/consents/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/consents/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListForPatientEndpoint(t *testing.T) {
	env := newTestEnv(t)
	patient := uuid.New()

	for i := 0; i < 2; i++ {
		rec := env.do(t, http.MethodPost, "/consents/grant", consentBody(patient, uuid.New()))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/patients/"+patient.String()+"/consents", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var consents []models.ConsentGrant
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &consents))
	assert.Len(t, consents, 2)
}

func TestAccessCheckEndpoint(t *testing.T) {
	env := newTestEnv(t)
	patient, doctor := uuid.New(), uuid.New()

	rec := env.do(t, http.MethodPost, "/consents/grant", consentBody(patient, doctor))
	require.Equal(t, http.StatusOK, rec.Code)

	// Deny is still a 200 with allowed=false.
	url := fmt.Sprintf("/access/check?actor_id=%s&subject_id=%s&action=download", doctor, patient)
	rec = env.do(t, http.MethodGet, url, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var decision services.Decision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decision))
	assert.False(t, decision.Allowed)

	url = fmt.Sprintf("/access/check?actor_id=%s&subject_id=%s&action=view", doctor, patient)
	rec = env.do(t, http.MethodGet, url, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decision))
	assert.True(t, decision.Allowed)

	rec = env.do(t, http.MethodGet, "/access/check?actor_id=junk&subject_id="+patient.String(), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
