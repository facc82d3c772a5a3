// Copyright (c) 2025 The Arke Institute developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package cache provides small caching utilities shared by the store clients.
package cache

import lru "github.com/hashicorp/golang-lru"

// LRU a LRU cache extends golang-lru.
type LRU struct {
	*lru.Cache
}

// NewLRU create a LRU cache instance.
// maxSize should be > 0, or an error returned.
func NewLRU(maxSize int) (*LRU, error) {
	cache, err := lru.New(maxSize)
	if err != nil {
		return nil, err
	}
	return &LRU{cache}, nil
}

// Loader defines loader to load value.
type Loader func(key interface{}) (interface{}, error)

// GetOrLoad first try to get from cache, do load if missed. The returned flag
// reports whether the value came from cache.
func (l *LRU) GetOrLoad(key interface{}, loader Loader) (interface{}, bool, error) {
	if v, ok := l.Get(key); ok {
		return v, true, nil
	}
	v, err := loader(key)
	if err != nil {
		return nil, false, err
	}

	l.Add(key, v)
	return v, false, nil
}
