package utils

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/perkclaims/config"
)

func init() {
	gin.SetMode(gin.TestMode)
	config.Override(config.AppConfig{JWTSecret: "utils-test-secret"})
}

func TestGenerateAndParseToken(t *testing.T) {
	token, err := GenerateToken("user_1", "alice", "alice@example.com", []string{"reviewer"}, time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user_1", claims.Subject)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, []string{"reviewer"}, claims.Roles)
}

func TestParseToken_Rejects(t *testing.T) {
	expired, err := GenerateToken("user_1", "alice", "", nil, -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(expired)
	assert.Error(t, err)

	noSubject, err := GenerateToken("", "alice", "", nil, time.Hour)
	require.NoError(t, err)
	_, err = ParseToken(noSubject)
	assert.EqualError(t, err, "token has no subject")

	_, err = ParseToken("garbage")
	assert.Error(t, err)
}

func TestTokenBlacklist_InMemory(t *testing.T) {
	ctx := context.Background()
	BlacklistToken(ctx, "tok-a", time.Now().Add(time.Hour))
	assert.True(t, IsTokenBlacklisted(ctx, "tok-a"))
	assert.False(t, IsTokenBlacklisted(ctx, "tok-b"))

	// already expired tokens need no entry
	BlacklistToken(ctx, "tok-c", time.Now().Add(-time.Second))
	assert.False(t, IsTokenBlacklisted(ctx, "tok-c"))
}

func TestCache_NoRedisIsNoop(t *testing.T) {
	ctx := context.Background()
	CacheSetJSON(ctx, "cache:test", map[string]int{"a": 1}, time.Minute)
	_, ok := CacheGetBytes(ctx, "cache:test")
	assert.False(t, ok)
	CacheDelete(ctx, "cache:test")
	InvalidateByPrefix(ctx, "cache:")
}

func TestStripTags(t *testing.T) {
	assert.Equal(t, "Fix the privacy policy link & resubmit",
		StripTags(`  <p>Fix the <a href="javascript:x()">privacy policy</a> link &amp; resubmit</p> `))
	assert.Equal(t, "", StripTags("<script>alert(1)</script>"))
	assert.Equal(t, "Don't", StripTags("Don't"))
}

func TestResponses(t *testing.T) {
	w := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(w)
	Created(ctx, gin.H{"id": 1})
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"success":true,"code":0,"message":"created","data":{"id":1}}`, w.Body.String())

	w = httptest.NewRecorder()
	ctx, _ = gin.CreateTestContext(w)
	ErrorWithDetails(ctx, http.StatusBadRequest, 40002, "validation failed", []string{"bad"})
	var body JSONResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, 40002, body.Code)
	assert.Equal(t, []interface{}{"bad"}, body.Errors)
}

func TestRecoveryWithZap(t *testing.T) {
	r := gin.New()
	r.Use(RecoveryWithZap(Logger, false))
	r.GET("/panic", func(*gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"code":50000`)
}

func TestNewMailer(t *testing.T) {
	m, err := NewMailer(config.AppConfig{})
	assert.NoError(t, err)
	assert.Nil(t, m)

	m, err = NewMailer(config.AppConfig{MailProvider: "SMTP", SMTPHost: "smtp.example.com", SMTPPort: 587, MailFrom: "noreply@example.com"})
	require.NoError(t, err)
	assert.IsType(t, &SMTPMailer{}, m)

	m, err = NewMailer(config.AppConfig{MailProvider: "sendgrid", SendGridAPIKey: "key", MailFrom: "noreply@example.com"})
	require.NoError(t, err)
	assert.IsType(t, &SendGridMailer{}, m)

	_, err = NewMailer(config.AppConfig{MailProvider: "sendgrid"})
	assert.Error(t, err)
	_, err = NewMailer(config.AppConfig{MailProvider: "pigeon"})
	assert.Error(t, err)
}

func TestSMTPMailer_Compose(t *testing.T) {
	m := &SMTPMailer{From: "noreply@example.com", FromName: "Perk Claims"}
	raw := string(m.compose(MailMessage{To: "alice@example.com", ToName: "Alice", Subject: "Hello", Text: "Body"}))

	assert.Contains(t, raw, "From: Perk Claims <noreply@example.com>\r\n")
	assert.Contains(t, raw, "To: Alice <alice@example.com>\r\n")
	assert.Contains(t, raw, "Subject: Hello\r\n")
	assert.True(t, strings.HasSuffix(raw, "\r\n\r\nBody"))

	encoded := string(m.compose(MailMessage{To: "a@example.com", Subject: "Genehmigt ✓", Text: "x"}))
	assert.Contains(t, encoded, "Subject: =?UTF-8?b?")
}
