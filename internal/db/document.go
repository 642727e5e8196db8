package db

import (
	"errors"
	"fmt"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DocumentKey 是习惯文档在键值表中的键
const DocumentKey = "habitTracker"

// ErrKeyNotFound 表示键值表中不存在该键
var ErrKeyNotFound = errors.New("key not found")

// KeyValue 存储以键寻址的文本块
type KeyValue struct {
	gorm.Model
	Key   string `gorm:"size:100;uniqueIndex;not null"`
	Value string `gorm:"type:text"`
}

// TableName 自定义表名以保持命名一致。
func (KeyValue) TableName() string {
	return "key_values"
}

// BlobStore 抽象最简单的键值读写
type BlobStore interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// KVStore 基于 gorm 的 BlobStore 实现
type KVStore struct {
	db *gorm.DB
}

// NewKVStore 构造 KVStore
func NewKVStore(gdb *gorm.DB) *KVStore {
	return &KVStore{db: gdb}
}

// Get 读取键对应的值，不存在时返回 ErrKeyNotFound
func (s *KVStore) Get(key string) ([]byte, error) {
	var record KeyValue
	if err := s.db.Where("key = ?", key).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("get key %s: %w", key, err)
	}
	return []byte(record.Value), nil
}

// Set 以 upsert 方式写入
func (s *KVStore) Set(key string, value []byte) error {
	record := KeyValue{Key: key, Value: string(value)}
	if err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"value":      string(value),
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(&record).Error; err != nil {
		return fmt.Errorf("upsert key %s: %w", key, err)
	}
	return nil
}

// Delete 物理删除键
func (s *KVStore) Delete(key string) error {
	if err := s.db.Unscoped().Where("key = ?", key).Delete(&KeyValue{}).Error; err != nil {
		return fmt.Errorf("delete key %s: %w", key, err)
	}
	return nil
}

// MemoryStore 是进程内的 BlobStore，主要用于测试和命令行的临时模式
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemoryStore 构造 MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: map[string][]byte{}}
}

func (m *MemoryStore) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return append([]byte(nil), value...), nil
}

func (m *MemoryStore) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
