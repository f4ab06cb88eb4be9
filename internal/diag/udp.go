// SPDX-License-Identifier: MIT
package diag

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"streamcore/internal/log"
)

// UDPSender sends datagrams to one target.
type UDPSender struct {
	conn   *net.UDPConn
	mu     sync.Mutex
	closed bool
}

// NewUDPSender dials targetAddress ("host:port").
func NewUDPSender(targetAddress string) (*UDPSender, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", targetAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP target address '%s': %w", targetAddress, err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial UDP for target '%s': %w", targetAddress, err)
	}
	log.Debugf("diag: udp sender connected to %s", conn.RemoteAddr())
	return &UDPSender{conn: conn}, nil
}

// Send transmits data as one packet.
func (s *UDPSender) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("UDP sender is closed")
	}
	if _, err := s.conn.Write(data); err != nil {
		return fmt.Errorf("failed to send UDP packet: %w", err)
	}
	return nil
}

// Close closes the connection.
func (s *UDPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close UDP connection: %w", err)
	}
	return nil
}

/*
StatsPacket is the binary stats datagram, big endian, 44 bytes:

	| Field     | Type   | Size |
	|-----------|--------|------|
	| Sequence  | uint32 | 4    |
	| Timestamp | int64  | 8    | nanoseconds since epoch
	| Processed | uint64 | 8    |
	| Dropped   | uint64 | 8    | exchange dropped frames
	| Missed    | uint64 | 8    |
	| Faults    | uint32 | 4    |
	| FIR       | uint8  | 1    |
	| IIR       | uint8  | 1    |
	| Flags     | uint16 | 2    | bit 0: halted
*/
type StatsPacket struct {
	Sequence  uint32
	Timestamp int64
	Processed uint64
	Dropped   uint64
	Missed    uint64
	Faults    uint32
	FIR       uint8
	IIR       uint8
	Flags     uint16
}

// PacketSize is the encoded size of a StatsPacket.
const PacketSize = 44

// FlagHalted marks a halted pipeline.
const FlagHalted = 1

// DecodePacket parses a stats packet.
func DecodePacket(b []byte) (StatsPacket, error) {
	var p StatsPacket
	if len(b) != PacketSize {
		return p, fmt.Errorf("stats packet: got %d bytes, want %d", len(b), PacketSize)
	}
	err := binary.Read(bytes.NewReader(b), binary.BigEndian, &p)
	return p, err
}

// UDPPublisher periodically sends a stats packet built from a snapshot.
type UDPPublisher struct {
	sender   *UDPSender
	snapshot func() Snapshot
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex

	sequenceNum  uint32
	packetBuffer *bytes.Buffer
}

// NewUDPPublisher returns a stopped publisher. A non-positive interval
// defaults to one second.
func NewUDPPublisher(interval time.Duration, sender *UDPSender, snapshot func() Snapshot) (*UDPPublisher, error) {
	if sender == nil {
		return nil, errors.New("UDPPublisher: UDP sender cannot be nil")
	}
	if snapshot == nil {
		return nil, errors.New("UDPPublisher: snapshot source cannot be nil")
	}
	if interval <= 0 {
		interval = time.Second
		log.Warnf("UDPPublisher: invalid interval, defaulting to %s", interval)
	}
	return &UDPPublisher{
		sender:       sender,
		snapshot:     snapshot,
		interval:     interval,
		packetBuffer: bytes.NewBuffer(make([]byte, 0, PacketSize)),
	}, nil
}

// Start launches the publishing goroutine. Further calls are no-ops.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		return
	}
	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}
	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-ticker.C:
				p.buildAndSendPacket()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop ends the goroutine and waits for it.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	return nil
}

func (p *UDPPublisher) buildAndSendPacket() {
	s := p.snapshot()
	p.sequenceNum++

	pkt := StatsPacket{
		Sequence:  p.sequenceNum,
		Timestamp: time.Now().UnixNano(),
		Processed: s.Stats.Processed,
		Dropped:   s.Stats.Stream.Dropped,
		Missed:    s.Stats.Missed,
		Faults:    uint32(s.Stats.Faults),
		FIR:       s.Mode.FIR,
		IIR:       s.Mode.IIR,
	}
	if s.Halted {
		pkt.Flags |= FlagHalted
	}

	p.packetBuffer.Reset()
	if err := binary.Write(p.packetBuffer, binary.BigEndian, &pkt); err != nil {
		log.Errorf("UDPPublisher: packing stats: %v", err)
		return
	}
	if err := p.sender.Send(p.packetBuffer.Bytes()); err != nil {
		log.Debugf("UDPPublisher: %v", err)
	}
}

// Close stops the publisher and closes the sender.
func (p *UDPPublisher) Close() error {
	if err := p.Stop(); err != nil {
		return err
	}
	return p.sender.Close()
}
