package store

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store wraps the GORM handle used across the engine: a driver switch,
// AutoMigrate on New, and structured logging on connect.
type Store struct {
	DB         *gorm.DB
	driver     string
	apiKeySeal [32]byte // derived AES-256 key for recoverable api_key storage
}

// New opens the relational store. driver is "postgres" or "sqlite"; dsn is
// the connection string (a file path for sqlite). apiKeySecret seeds the
// AES key that makes issued api_keys recoverable on idempotent re-connect
// (see ConnectAccount) without storing them in the clear.
func New(driver, dsn, apiKeySecret string) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres", "":
		dialector = postgres.Open(dsn)
		driver = "postgres"
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}

	s := &Store{DB: db, driver: driver, apiKeySeal: sha256.Sum256([]byte(apiKeySecret))}
	if err := s.migrate(); err != nil {
		return nil, err
	}

	log.Info().Str("driver", driver).Msg("💾 store connected")
	return s, nil
}

// migrate runs AutoMigrate then lays down the partial unique indexes that
// are the concurrency-control mechanism for "one open trade per
// (account,symbol)" and "one active signal per (symbol,timeframe)": no
// application mutex duplicates these checks.
func (s *Store) migrate() error {
	if err := s.DB.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("store: automigrate: %w", err)
	}

	stmts := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_trade_one_open_per_symbol
			ON trades (account_number, symbol) WHERE status = 'open'`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_signal_one_active_per_symbol_tf
			ON trading_signals (symbol, timeframe) WHERE status = 'active'`,
	}
	for _, stmt := range stmts {
		if err := s.DB.Exec(stmt).Error; err != nil {
			return fmt.Errorf("store: partial index: %w", err)
		}
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ═══════════════════════════════════════════════════════════════════════════
// API KEYS
// ═══════════════════════════════════════════════════════════════════════════

// GenerateAPIKey returns a new 48+ char opaque token.
func GenerateAPIKey() (string, error) {
	buf := make([]byte, 36) // 72 hex chars
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// HashAPIKey hashes a key for lookup: AccountByAPIKey matches on this, never
// on the recoverable ciphertext.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// sealAPIKey AES-GCM-encrypts key under the store's derived key, so a
// repeat /api/connect can recover and return the same key (§8 idempotence)
// without the key sitting in the database in the clear.
func (s *Store) sealAPIKey(key string) (string, error) {
	block, err := aes.NewCipher(s.apiKeySeal[:])
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, []byte(key), nil)
	return hex.EncodeToString(sealed), nil
}

// unsealAPIKey reverses sealAPIKey.
func (s *Store) unsealAPIKey(encrypted string) (string, error) {
	raw, err := hex.DecodeString(encrypted)
	if err != nil {
		return "", err
	}
	block, err := aes.NewCipher(s.apiKeySeal[:])
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	if len(raw) < gcm.NonceSize() {
		return "", fmt.Errorf("store: api key ciphertext too short")
	}
	nonce, ciphertext := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("store: api key unseal: %w", err)
	}
	return string(plain), nil
}

// ═══════════════════════════════════════════════════════════════════════════
// ACCOUNTS
// ═══════════════════════════════════════════════════════════════════════════

var ErrNotFound = errors.New("store: not found")

// ConnectAccount implements the idempotent-on-account-number contract of
// POST /api/connect: returns the existing key on repeat calls, or creates
// the account and a fresh key on first connect.
func (s *Store) ConnectAccount(ctx context.Context, accountNumber int64, broker, platform string) (apiKey string, isNew bool, err error) {
	var acct Account
	res := s.DB.WithContext(ctx).First(&acct, "account_number = ?", accountNumber)
	if res.Error == nil {
		key, err := s.unsealAPIKey(acct.APIKeyEncrypted)
		if err != nil {
			return "", false, fmt.Errorf("store: recover api key: %w", err)
		}
		return key, false, nil
	}
	if !errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return "", false, res.Error
	}

	key, err := GenerateAPIKey()
	if err != nil {
		return "", false, err
	}
	sealed, err := s.sealAPIKey(key)
	if err != nil {
		return "", false, err
	}

	acct = Account{
		AccountNumber:   accountNumber,
		APIKeyHash:      HashAPIKey(key),
		APIKeyEncrypted: sealed,
		Broker:          broker,
		Platform:        platform,
		LastHeartbeat:   time.Now().UTC(),
	}
	if err := s.DB.WithContext(ctx).Create(&acct).Error; err != nil {
		return "", false, err
	}
	return key, true, nil
}

// AllAccounts returns every connected account, for workers that sweep
// across accounts (trailing-stop evaluation, signal generation fan-out).
func (s *Store) AllAccounts(ctx context.Context) ([]Account, error) {
	var accounts []Account
	if err := s.DB.WithContext(ctx).Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

// AccountByAPIKey looks up the account owning a given plaintext key.
func (s *Store) AccountByAPIKey(ctx context.Context, apiKey string) (*Account, error) {
	var acct Account
	err := s.DB.WithContext(ctx).First(&acct, "api_key_hash = ?", HashAPIKey(apiKey)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

// UpdateHeartbeat records the latest account metrics (latest-wins).
func (s *Store) UpdateHeartbeat(ctx context.Context, accountNumber int64, balance, equity, margin, freeMargin decimal.Decimal) error {
	return s.DB.WithContext(ctx).Model(&Account{}).
		Where("account_number = ?", accountNumber).
		Updates(map[string]any{
			"balance":        balance,
			"equity":         equity,
			"margin":         margin,
			"free_margin":    freeMargin,
			"last_heartbeat": time.Now().UTC(),
		}).Error
}

// ═══════════════════════════════════════════════════════════════════════════
// OPEN-TRADE / ACTIVE-SIGNAL CONFLICT DETECTION
// ═══════════════════════════════════════════════════════════════════════════

// IsUniqueViolation reports whether err came from violating one of the
// partial unique indexes above — the duplicate-insert-as-the-check
// pattern used instead of an application mutex.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}

// Driver returns the active SQL driver name ("postgres" or "sqlite").
func (s *Store) Driver() string { return s.driver }
