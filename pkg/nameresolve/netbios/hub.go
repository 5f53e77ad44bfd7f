package netbios

import (
	"sync"

	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/nmb"
)

const hubQueueLen = 8

// Hub distributes packets received by a local name server to the
// transactions waiting on their transaction ID.
type Hub struct {
	mu   sync.Mutex
	subs map[uint16][]chan *nmb.Packet
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[uint16][]chan *nmb.Packet)}
}

// Subscribe registers interest in trnID. The returned function unsubscribes
// and closes the channel.
func (h *Hub) Subscribe(trnID uint16) (<-chan *nmb.Packet, func()) {
	ch := make(chan *nmb.Packet, hubQueueLen)
	h.mu.Lock()
	h.subs[trnID] = append(h.subs[trnID], ch)
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			list := h.subs[trnID]
			for i, c := range list {
				if c == ch {
					list = append(list[:i], list[i+1:]...)
					break
				}
			}
			if len(list) == 0 {
				delete(h.subs, trnID)
			} else {
				h.subs[trnID] = list
			}
			close(ch)
		})
	}
}

// Deliver hands p to every subscriber of its transaction ID and reports how
// many took it. Subscribers with a full queue miss the packet.
func (h *Hub) Deliver(p *nmb.Packet) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, ch := range h.subs[p.Header.TrnID] {
		select {
		case ch <- p:
			n++
		default:
			debugLog("hub: subscriber queue full for trn %d", p.Header.TrnID)
		}
	}
	return n
}

// DeliverRaw parses data and delivers it.
func (h *Hub) DeliverRaw(data []byte) (int, error) {
	p, err := nmb.Parse(data)
	if err != nil {
		return 0, err
	}
	return h.Deliver(p), nil
}
