package store

import (
	"github.com/steadycast/steadycast/youtube/cipher"
)

// GetProgram implements cipher.ProgramCache.
func (s *Store) GetProgram(playerJSURL string) (cipher.Program, bool) {
	var p cipher.Program
	ok := s.get(bucketPrograms, playerJSURL, &p)
	return p, ok
}

// PutProgram implements cipher.ProgramCache.
func (s *Store) PutProgram(playerJSURL string, p cipher.Program) {
	_ = s.put(bucketPrograms, playerJSURL, p)
}
