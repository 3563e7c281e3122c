package chronicle

import "sync"

// ChapterLocker сериализует генерации одной главы внутри процесса.
// Между процессами гонка принудительных перегенераций остается last-write-wins.
type ChapterLocker struct {
	mu    sync.Mutex
	locks map[string]*chapterLock
}

type chapterLock struct {
	mu   sync.Mutex
	refs int
}

// NewChapterLocker создает ChapterLocker.
func NewChapterLocker() *ChapterLocker {
	return &ChapterLocker{locks: make(map[string]*chapterLock)}
}

// Lock захватывает мьютекс главы и возвращает функцию освобождения.
func (l *ChapterLocker) Lock(chapterID string) (unlock func()) {
	l.mu.Lock()
	lock, ok := l.locks[chapterID]
	if !ok {
		lock = &chapterLock{}
		l.locks[chapterID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			lock.mu.Unlock()
			l.mu.Lock()
			lock.refs--
			if lock.refs == 0 {
				delete(l.locks, chapterID)
			}
			l.mu.Unlock()
		})
	}
}

// size возвращает число активных записей, используется в тестах.
func (l *ChapterLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
