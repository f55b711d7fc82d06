package walletsim

import (
	"context"
	"sync"

	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/bridge"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Serve answers requests arriving on t until t closes or ctx ends. Requests
// are handled concurrently so a slow prompt does not block the others.
func (w *Wallet) Serve(ctx context.Context, t bridge.Transport) error {
	w.track(t)
	defer w.untrack(t)

	var wg sync.WaitGroup
	defer wg.Wait()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.Done():
			return nil
		case env := <-t.Inbound():
			if env.Kind != protocol.KindRequest {
				log.Debug().Str("kind", string(env.Kind)).Msg("walletsim: ignoring non-request envelope")
				continue
			}
			wg.Add(1)
			go func(req protocol.Envelope) {
				defer wg.Done()
				reply, ok := w.Handle(ctx, req)
				if !ok {
					return
				}
				if err := t.Send(ctx, reply); err != nil {
					log.Debug().Err(err).Str("id", req.ID).Msg("walletsim: reply not delivered")
				}
			}(env)
		}
	}
}

// Announce pushes the wallet-connected event to every attached peer and
// returns how many received it.
func (w *Wallet) Announce(ctx context.Context) int {
	w.mu.Lock()
	peers := make([]bridge.Transport, 0, len(w.peers))
	for t := range w.peers {
		peers = append(peers, t)
	}
	w.mu.Unlock()

	sent := 0
	for _, t := range peers {
		if err := t.Send(ctx, protocol.NewNotification(protocol.EventWalletConnected)); err != nil {
			log.Debug().Err(err).Msg("walletsim: announce failed")
			continue
		}
		sent++
	}
	log.Info().Int("peers", sent).Msg("walletsim: announced wallet")
	return sent
}

// Peers returns how many transports are being served.
func (w *Wallet) Peers() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.peers)
}

func (w *Wallet) track(t bridge.Transport) {
	w.mu.Lock()
	w.peers[t] = struct{}{}
	w.mu.Unlock()
}

func (w *Wallet) untrack(t bridge.Transport) {
	w.mu.Lock()
	delete(w.peers, t)
	w.mu.Unlock()
}
