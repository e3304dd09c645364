//go:build cgo

package pkcs11

import (
	"fmt"
	"sync"

	"github.com/miekg/pkcs11"
)

// sessionPool hands out read-only sessions on one slot. Sessions are
// reused across calls and closed together on Close.
type sessionPool struct {
	mu        sync.Mutex
	ctx       *pkcs11.Ctx
	slotID    uint
	pin       string
	available []pkcs11.SessionHandle
	inUse     map[pkcs11.SessionHandle]bool
	loginDone bool
	closed    bool
}

func openPool(cfg Config) (*sessionPool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pin, err := cfg.PIN()
	if err != nil {
		return nil, err
	}

	ctx := pkcs11.New(cfg.Lib)
	if ctx == nil {
		return nil, fmt.Errorf("failed to load PKCS#11 module: %s", cfg.Lib)
	}

	// Initialize module (ignore CKR_CRYPTOKI_ALREADY_INITIALIZED)
	if err := ctx.Initialize(); err != nil {
		if p11err, ok := err.(pkcs11.Error); !ok || p11err != pkcs11.CKR_CRYPTOKI_ALREADY_INITIALIZED {
			ctx.Destroy()
			return nil, fmt.Errorf("failed to initialize PKCS#11 module: %w", err)
		}
	}

	slot, err := findSlot(ctx, cfg)
	if err != nil {
		_ = ctx.Finalize()
		ctx.Destroy()
		return nil, err
	}

	return &sessionPool{
		ctx:    ctx,
		slotID: slot,
		pin:    pin,
		inUse:  make(map[pkcs11.SessionHandle]bool),
	}, nil
}

func findSlot(ctx *pkcs11.Ctx, cfg Config) (uint, error) {
	if cfg.Slot != nil {
		return *cfg.Slot, nil
	}

	slots, err := ctx.GetSlotList(true)
	if err != nil {
		return 0, fmt.Errorf("failed to get slot list: %w", err)
	}

	for _, slot := range slots {
		info, err := ctx.GetTokenInfo(slot)
		if err != nil {
			continue
		}
		if cfg.Token != "" && info.Label == cfg.Token {
			return slot, nil
		}
		if cfg.TokenSerial != "" && info.SerialNumber == cfg.TokenSerial {
			return slot, nil
		}
	}

	if cfg.Token != "" {
		return 0, fmt.Errorf("token with label %q not found", cfg.Token)
	}
	return 0, fmt.Errorf("token with serial %q not found", cfg.TokenSerial)
}

// acquire reserves a session. The returned release func must be called.
func (p *sessionPool) acquire() (pkcs11.SessionHandle, func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, nil, fmt.Errorf("session pool is closed")
	}

	var session pkcs11.SessionHandle
	if n := len(p.available); n > 0 {
		session = p.available[n-1]
		p.available = p.available[:n-1]
	} else {
		var err error
		session, err = p.ctx.OpenSession(p.slotID, pkcs11.CKF_SERIAL_SESSION)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to open session: %w", err)
		}

		// Login is per token, not per session
		if p.pin != "" && !p.loginDone {
			if err := p.ctx.Login(session, pkcs11.CKU_USER, p.pin); err != nil {
				if e, ok := err.(pkcs11.Error); !ok || e != pkcs11.CKR_USER_ALREADY_LOGGED_IN {
					_ = p.ctx.CloseSession(session)
					return 0, nil, fmt.Errorf("failed to login: %w", err)
				}
			}
			p.loginDone = true
		}
	}
	p.inUse[session] = true

	release := func() {
		p.mu.Lock()
		defer p.mu.Unlock()

		delete(p.inUse, session)
		if p.closed {
			_ = p.ctx.CloseSession(session)
			return
		}
		p.available = append(p.available, session)
	}
	return session, release, nil
}

func (p *sessionPool) close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	if p.loginDone && len(p.available) > 0 {
		if err := p.ctx.Logout(p.available[0]); err != nil {
			if e, ok := err.(pkcs11.Error); !ok || e != pkcs11.CKR_USER_NOT_LOGGED_IN {
				errs = append(errs, fmt.Errorf("logout: %w", err))
			}
		}
	}
	for _, session := range p.available {
		if err := p.ctx.CloseSession(session); err != nil {
			errs = append(errs, fmt.Errorf("close session: %w", err))
		}
	}
	if err := p.ctx.Finalize(); err != nil {
		if e, ok := err.(pkcs11.Error); !ok || e != pkcs11.CKR_CRYPTOKI_NOT_INITIALIZED {
			errs = append(errs, fmt.Errorf("finalize: %w", err))
		}
	}
	p.ctx.Destroy()

	if len(errs) > 0 {
		return fmt.Errorf("errors closing pool: %v", errs)
	}
	return nil
}
