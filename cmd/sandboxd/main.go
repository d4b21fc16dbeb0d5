package main

import (
	"crypto/ed25519"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/riyada/openbanking-sandbox/ciba"
	"github.com/riyada/openbanking-sandbox/dpop"
	errs "github.com/riyada/openbanking-sandbox/errors"
	"github.com/riyada/openbanking-sandbox/generates"
	"github.com/riyada/openbanking-sandbox/models"
	"github.com/riyada/openbanking-sandbox/server"
	"github.com/riyada/openbanking-sandbox/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	appCfg := server.GetConfig()

	kv, err := buildKV(appCfg)
	if err != nil {
		logger.Error("store init failed", "backend", appCfg.Store.Backend, "error", err)
		os.Exit(1)
	}
	defer kv.Close()

	prefix := appCfg.Store.Valkey.Prefix
	nonces := store.NewNonceStore(kv, prefix)
	replays := store.NewProofReplayStore(kv, prefix)
	sessions := store.NewAuthSessionStore(kv, prefix)

	clients := store.NewClientStore()
	for _, cc := range appCfg.Clients {
		clients.Set(cc.ID, &models.Client{ID: cc.ID, Secret: cc.SecretHash, Scopes: cc.Scopes})
	}
	if len(appCfg.Clients) == 0 {
		hash, _ := bcrypt.GenerateFromPassword([]byte("demo-client-secret"), bcrypt.DefaultCost)
		clients.Set("demo-client", &models.Client{
			ID:     "demo-client",
			Secret: string(hash),
			Scopes: []string{"accounts.read", "payments.write"},
		})
	}

	method := jwt.GetSigningMethod(appCfg.JWT.Method)
	if method == nil {
		logger.Error("unknown signing method", "method", appCfg.JWT.Method)
		os.Exit(1)
	}
	signKey, err := loadSignKey(appCfg)
	if err != nil {
		logger.Error("signing key load failed", "error", err)
		os.Exit(1)
	}

	tokens := generates.NewCIBATokenGenerate(appCfg.Issuer, appCfg.JWT.Kid, signKey, method)
	service := ciba.NewService(sessions, tokens, ciba.DefaultConfig(), logger)
	verifier := dpop.NewVerifier(replays)

	srvCfg := server.NewConfig()
	srvCfg.Issuer = appCfg.Issuer
	srvCfg.SigningAlg = method.Alg()

	keyfunc, err := bearerKeyfunc(method, signKey)
	if err != nil {
		logger.Error("verification key derivation failed", "error", err)
		os.Exit(1)
	}

	s := server.NewServer(srvCfg, service, nonces, verifier, clients, keyfunc, logger)
	engine := server.NewGinEngine(s)

	httpSrv := &http.Server{
		Addr:              appCfg.Listen,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Info("listening", "addr", appCfg.Listen, "env", appCfg.Env, "backend", appCfg.Store.Backend)
	if err := httpSrv.ListenAndServe(); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func buildKV(cfg *server.AppConfig) (store.KV, error) {
	switch cfg.Store.Backend {
	case "valkey":
		return store.NewValkeyKV(cfg.Store.Valkey.Addr)
	case "memory", "":
		return store.NewBuntKV()
	default:
		return nil, errs.New("unknown store backend: " + cfg.Store.Backend)
	}
}

func loadSignKey(cfg *server.AppConfig) ([]byte, error) {
	if cfg.JWT.KeyFile != "" {
		return os.ReadFile(cfg.JWT.KeyFile)
	}
	return []byte(cfg.JWT.Secret), nil
}

// bearerKeyfunc derives the verification key matching the token signer.
// HMAC verifies with the shared secret, asymmetric methods with the public
// half of the configured private key.
func bearerKeyfunc(method jwt.SigningMethod, signKey []byte) (jwt.Keyfunc, error) {
	var key any
	alg := method.Alg()
	switch {
	case strings.HasPrefix(alg, "HS"):
		key = signKey
	case strings.HasPrefix(alg, "ES"):
		priv, err := jwt.ParseECPrivateKeyFromPEM(signKey)
		if err != nil {
			return nil, err
		}
		key = priv.Public()
	case strings.HasPrefix(alg, "RS") || strings.HasPrefix(alg, "PS"):
		priv, err := jwt.ParseRSAPrivateKeyFromPEM(signKey)
		if err != nil {
			return nil, err
		}
		key = priv.Public()
	case strings.HasPrefix(alg, "Ed"):
		priv, err := jwt.ParseEdPrivateKeyFromPEM(signKey)
		if err != nil {
			return nil, err
		}
		edKey, ok := priv.(ed25519.PrivateKey)
		if !ok {
			return nil, errs.New("unsupported sign method")
		}
		key = edKey.Public()
	default:
		return nil, errs.New("unsupported sign method")
	}
	return func(t *jwt.Token) (any, error) { return key, nil }, nil
}
