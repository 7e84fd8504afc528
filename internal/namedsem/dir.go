package namedsem

import "os"

const shmDir = "/dev/shm"

// DefaultDir returns the directory semaphores live in when none is
// configured: /dev/shm when present, else the system temp directory.
func DefaultDir() string {
	if info, err := os.Stat(shmDir); err == nil && info.IsDir() {
		return shmDir
	}
	return os.TempDir()
}
