// internal/common/auth/keycloak.go
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "internship-portal/internal/common/errors"
	commonhttp "internship-portal/internal/common/http"
	"internship-portal/internal/models"

	"github.com/redis/go-redis/v9"
)

// KeycloakClient resolves bearer tokens through the realm's introspection
// endpoint. Active tokens are cached in Redis until the shorter of the cache
// TTL and the token expiry.
type KeycloakClient struct {
	baseURL      string
	realm        string
	clientID     string
	clientSecret string
	httpClient   *commonhttp.Client
	cache        redis.Cmdable
	cacheTTL     time.Duration
	now          func() time.Time
}

// IntrospectionResponse is the subset of RFC 7662 fields Keycloak returns
// that the portal relies on.
type IntrospectionResponse struct {
	Active      bool   `json:"active"`
	Subject     string `json:"sub"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	ExpiresAt   int64  `json:"exp"`
	RealmAccess struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
}

func NewKeycloakClient(baseURL, realm, clientID, clientSecret string, cache redis.Cmdable, cacheTTL time.Duration) *KeycloakClient {
	return &KeycloakClient{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		realm:        realm,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   commonhttp.NewClient(10 * time.Second),
		cache:        cache,
		cacheTTL:     cacheTTL,
		now:          time.Now,
	}
}

// Authenticate returns the principal behind token or an Unauthorized error.
func (k *KeycloakClient) Authenticate(ctx context.Context, token string) (models.Principal, error) {
	if token == "" {
		return models.Principal{}, apperrors.NewUnauthorizedError("missing bearer token")
	}
	key := cacheKey(token)
	if k.cache != nil {
		if raw, err := k.cache.Get(ctx, key).Result(); err == nil {
			var p models.Principal
			if json.Unmarshal([]byte(raw), &p) == nil {
				return p, nil
			}
		}
	}

	info, err := k.introspect(ctx, token)
	if err != nil {
		return models.Principal{}, err
	}
	if !info.Active || info.Subject == "" {
		return models.Principal{}, apperrors.NewUnauthorizedError("token is not active")
	}
	p := models.Principal{UserID: info.Subject, Email: info.Email, Name: info.Name, Roles: mapRoles(info.RealmAccess.Roles)}

	if k.cache != nil {
		ttl := k.cacheTTL
		if info.ExpiresAt > 0 {
			if untilExp := time.Unix(info.ExpiresAt, 0).Sub(k.now()); untilExp < ttl {
				ttl = untilExp
			}
		}
		if ttl > 0 {
			data, _ := json.Marshal(p)
			_ = k.cache.Set(ctx, key, data, ttl).Err()
		}
	}
	return p, nil
}

func (k *KeycloakClient) introspect(ctx context.Context, token string) (*IntrospectionResponse, error) {
	endpoint := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token/introspect", k.baseURL, k.realm)
	form := url.Values{}
	form.Set("token", token)
	form.Set("client_id", k.clientID)
	form.Set("client_secret", k.clientSecret)

	resp, err := k.httpClient.PostForm(ctx, endpoint, form)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.NewTimeoutError("keycloak", err)
		}
		return nil, apperrors.NewExternalServiceError("keycloak", err)
	}
	defer commonhttp.Drain(resp.Body)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, apperrors.NewExternalServiceError("keycloak",
			fmt.Errorf("introspection failed with status %d: %s", resp.StatusCode, string(body)))
	}

	var out IntrospectionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apperrors.NewExternalServiceError("keycloak", fmt.Errorf("decode introspection: %w", err))
	}
	return &out, nil
}

// mapRoles keeps the realm roles the portal knows about.
func mapRoles(realmRoles []string) []models.Role {
	roles := []models.Role{}
	for _, r := range realmRoles {
		switch role := models.Role(strings.ToLower(r)); role {
		case models.RoleStudent, models.RoleCompany, models.RoleAdmin:
			roles = append(roles, role)
		}
	}
	return roles
}

func cacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "auth:token:" + hex.EncodeToString(sum[:])
}
