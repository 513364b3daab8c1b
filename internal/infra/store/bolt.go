package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"voice-companion/internal/domain"
)

var bucket = []byte("companion")

const (
	keyUser          = "user"
	keyHistory       = "speech-history"
	keyConversations = "conversations"
)

// Bolt is the on-device store. Each record is one JSON value in a single
// bucket; times are encoded as RFC 3339 strings by encoding/json.
type Bolt struct {
	db *bolt.DB
}

func Open(path string) (*Bolt, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening store %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}
	return &Bolt{db: db}, nil
}

func (s *Bolt) Close() error {
	return s.db.Close()
}

func (s *Bolt) LoadUser() (*domain.User, error) {
	var user domain.User
	found, err := s.get(keyUser, &user)
	if err != nil || !found {
		return nil, err
	}
	return &user, nil
}

func (s *Bolt) SaveUser(user *domain.User) error {
	return s.put(keyUser, user)
}

func (s *Bolt) ClearUser() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Delete([]byte(keyUser))
	})
}

func (s *Bolt) LoadHistory() ([]domain.Utterance, error) {
	var history []domain.Utterance
	if _, err := s.get(keyHistory, &history); err != nil {
		return nil, err
	}
	return history, nil
}

func (s *Bolt) SaveHistory(history []domain.Utterance) error {
	if history == nil {
		history = []domain.Utterance{}
	}
	return s.put(keyHistory, history)
}

func (s *Bolt) LoadConversations() ([]domain.Conversation, error) {
	var convs []domain.Conversation
	if _, err := s.get(keyConversations, &convs); err != nil {
		return nil, err
	}
	return convs, nil
}

func (s *Bolt) SaveConversations(convs []domain.Conversation) error {
	if convs == nil {
		convs = []domain.Conversation{}
	}
	return s.put(keyConversations, convs)
}

func (s *Bolt) get(key string, v any) (bool, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if raw := tx.Bucket(bucket).Get([]byte(key)); raw != nil {
			data = append([]byte(nil), raw...)
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", key, err)
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decoding %s: %w", key, err)
	}
	return true, nil
}

func (s *Bolt) put(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}
