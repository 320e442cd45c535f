package session

import "sync"

// KeyRing holds API keys typed by users for their session. Keys live only
// in process memory and are never written to a Store.
type KeyRing struct {
	mu   sync.RWMutex
	keys map[string]string
}

func NewKeyRing() *KeyRing {
	return &KeyRing{keys: make(map[string]string)}
}

// Set stores key for the session; an empty key removes it.
func (k *KeyRing) Set(sessionID, key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if key == "" {
		delete(k.keys, sessionID)
		return
	}
	k.keys[sessionID] = key
}

func (k *KeyRing) Get(sessionID string) string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.keys[sessionID]
}

func (k *KeyRing) Has(sessionID string) bool {
	return k.Get(sessionID) != ""
}

func (k *KeyRing) Delete(sessionID string) {
	k.Set(sessionID, "")
}
