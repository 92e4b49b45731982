package ratelimit

import (
	"sync"
	"time"
)

// Limiter - инжектируемая возможность ограничения частоты.
// Движку платежей все равно, чем она подкреплена; в многоинстансовом
// деплое сюда встает реализация поверх общего кэша.
type Limiter interface {
	Allow(key string) bool
}

// SlidingWindow - процесс-локальный лимитер со скользящим окном.
// Достаточен для одного инстанса; лимиты здесь защищают от абьюза,
// корректность settlement-а от них не зависит.
type SlidingWindow struct {
	mu        sync.Mutex
	limit     int
	window    time.Duration
	hits      map[string][]time.Time
	lastSweep time.Time

	// подменяется в тестах
	now func() time.Time
}

func NewSlidingWindow(limit int, window time.Duration) *SlidingWindow {
	return &SlidingWindow{
		limit:  limit,
		window: window,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Allow регистрирует попытку и сообщает, укладывается ли она в лимит.
func (l *SlidingWindow) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	recent := prune(l.hits[key], cutoff)
	if len(recent) >= l.limit {
		l.hits[key] = recent
		return false
	}

	l.hits[key] = append(recent, now)
	l.sweepLocked(now, cutoff)
	return true
}

// Reset сбрасывает счетчик по ключу (используется в тестах и админке)
func (l *SlidingWindow) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.hits, key)
}

func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for idx < len(stamps) && !stamps[idx].After(cutoff) {
		idx++
	}
	return stamps[idx:]
}

// sweepLocked не чаще раза за окно выбрасывает целиком устаревшие ключи,
// иначе карта растет на каждом новом tx_ref
func (l *SlidingWindow) sweepLocked(now, cutoff time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	l.lastSweep = now

	for key, stamps := range l.hits {
		if remaining := prune(stamps, cutoff); len(remaining) == 0 {
			delete(l.hits, key)
		} else {
			l.hits[key] = remaining
		}
	}
}
