package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
)

type telegramUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

// AdminAuth protects the back-office routes. Two methods are accepted:
// HTTP BasicAuth against ADMIN_PASSWORD, or Telegram Mini App initData
// from an id listed in ADMIN_TELEGRAM_IDS.
func AdminAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if checkBasicAuth(r) {
			next.ServeHTTP(w, r)
			return
		}

		if user, ok := telegramInitData(r); ok {
			if isAdmin(user.ID, os.Getenv("ADMIN_TELEGRAM_IDS")) {
				next.ServeHTTP(w, r)
				return
			}
			log.Printf("Telegram user %d is not an admin", user.ID)
		}

		w.Header().Set("WWW-Authenticate", `Basic realm="Donations Admin"`)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"unauthorized"}`))
	})
}

func checkBasicAuth(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Basic ") {
		return false
	}

	payload, err := base64.StdEncoding.DecodeString(auth[6:])
	if err != nil {
		return false
	}

	pair := strings.SplitN(string(payload), ":", 2)
	if len(pair) != 2 {
		return false
	}

	expected := os.Getenv("ADMIN_PASSWORD")
	return expected != "" && pair[0] == "admin" && pair[1] == expected
}

// telegramInitData extracts and validates Mini App initData from the
// header, query or cookie, in that order.
func telegramInitData(r *http.Request) (*telegramUser, bool) {
	initData := r.Header.Get("X-Telegram-Init-Data")
	if initData == "" {
		initData = r.URL.Query().Get("tg_init_data")
	}
	if initData == "" {
		if cookie, err := r.Cookie("tg_init_data"); err == nil {
			if decoded, err := url.QueryUnescape(cookie.Value); err == nil {
				initData = decoded
			}
		}
	}
	if initData == "" {
		return nil, false
	}
	return validateInitData(initData, os.Getenv("TELEGRAM_TOKEN"))
}

// validateInitData implements Telegram's initData check: the hash
// parameter must equal HMAC-SHA256 of the sorted key=value lines,
// keyed by HMAC-SHA256("WebAppData", bot_token).
func validateInitData(initData, botToken string) (*telegramUser, bool) {
	if botToken == "" {
		return nil, false
	}

	params, err := url.ParseQuery(initData)
	if err != nil {
		return nil, false
	}
	hash := params.Get("hash")
	if hash == "" {
		return nil, false
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		if k != "hash" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+params.Get(k))
	}

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(lines, "\n")))
	if hex.EncodeToString(mac.Sum(nil)) != hash {
		return nil, false
	}

	var user telegramUser
	if err := json.Unmarshal([]byte(params.Get("user")), &user); err != nil {
		return nil, false
	}
	return &user, true
}

func isAdmin(userID int64, adminIDs string) bool {
	for _, id := range strings.Split(adminIDs, ",") {
		if parsed, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64); err == nil && parsed == userID {
			return true
		}
	}
	return false
}
