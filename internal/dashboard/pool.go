package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var ErrPoolClosed = errors.New("dashboard pool closed")

type poolEntry struct {
	board    *Board
	loadedAt time.Time
	usedAt   time.Time
}

// Pool keeps one Board per user id so repeated requests for the same user
// share bindings and never refetch unchanged data before the TTL runs out.
type Pool struct {
	gw        Gateway
	ttl       time.Duration
	maxBoards int

	mu     sync.Mutex
	boards map[int]*poolEntry
	closed bool

	now func() time.Time
}

// NewPool builds a pool. A zero ttl never refreshes; a maxBoards below one
// keeps every board.
func NewPool(gw Gateway, ttl time.Duration, maxBoards int) *Pool {
	return &Pool{
		gw:        gw,
		ttl:       ttl,
		maxBoards: maxBoards,
		boards:    make(map[int]*poolEntry),
		now:       time.Now,
	}
}

func (p *Pool) board(id int) (*Board, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPoolClosed
	}

	now := p.now()
	e, ok := p.boards[id]
	if !ok {
		p.evictLocked()
		e = &poolEntry{board: NewBoard(p.gw), loadedAt: now}
		p.boards[id] = e
	} else if p.ttl > 0 && now.Sub(e.loadedAt) >= p.ttl {
		slog.Debug("Dashboard expired, refreshing", "user_id", id)
		e.board.Invalidate()
		e.loadedAt = now
	}
	e.usedAt = now
	return e.board, nil
}

// evictLocked drops the least recently used board once the pool is full.
func (p *Pool) evictLocked() {
	if p.maxBoards < 1 || len(p.boards) < p.maxBoards {
		return
	}
	oldest := -1
	var oldestAt time.Time
	for id, e := range p.boards {
		if oldest == -1 || e.usedAt.Before(oldestAt) {
			oldest, oldestAt = id, e.usedAt
		}
	}
	p.boards[oldest].board.Close()
	delete(p.boards, oldest)
}

// Load returns the dashboard of user id, reusing that user's board.
func (p *Pool) Load(ctx context.Context, id int) (*Dashboard, error) {
	b, err := p.board(id)
	if err != nil {
		return nil, err
	}
	return b.Load(ctx, id)
}

func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.boards)
}

// Close closes every board; later loads fail with ErrPoolClosed.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for id, e := range p.boards {
		e.board.Close()
		delete(p.boards, id)
	}
}
