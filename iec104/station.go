package iec104

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/baetyl/baetyl-go/v2/errors"
	"github.com/baetyl/baetyl-go/v2/log"
)

// DefaultReadTimeout bounds client-side read requests.
const DefaultReadTimeout = 5 * time.Second

// Station owns the points of one common address and resolves their
// transport. Points keep a non-owning back reference to it; after Close the
// reference reports dead and point operations needing context fail.
type Station struct {
	commonAddress uint16
	role          Role
	log           *log.Logger
	closed        atomic.Bool

	mu          sync.RWMutex
	points      map[uint32]*Point
	order       []uint32
	connector   Connector
	readTimeout time.Duration
}

func NewStation(commonAddress uint16, role Role, conn Connector) *Station {
	return &Station{
		commonAddress: commonAddress,
		role:          role,
		log: log.L().With(
			log.Any("station", commonAddress),
			log.Any("role", role.String())),
		points:      map[uint32]*Point{},
		connector:   conn,
		readTimeout: DefaultReadTimeout,
	}
}

func (s *Station) CommonAddress() uint16 { return s.commonAddress }

func (s *Station) Role() Role { return s.role }

// SetConnector replaces the transport of the station.
func (s *Station) SetConnector(c Connector) {
	s.mu.Lock()
	s.connector = c
	s.mu.Unlock()
}

func (s *Station) Connector() Connector {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connector
}

// SetReadTimeout bounds client-side read requests issued by the station's
// points.
func (s *Station) SetReadTimeout(d time.Duration) {
	s.mu.Lock()
	s.readTimeout = d
	s.mu.Unlock()
}

func (s *Station) ReadTimeout() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readTimeout
}

// AddPoint creates a point owned by this station. The address must be
// unique within the station and the options compatible with the station
// role and the point type.
func (s *Station) AddPoint(opts PointOptions) (*Point, error) {
	if s.Closed() {
		return nil, errors.New("station is closed")
	}
	if opts.IOA == 0 {
		return nil, errors.New("information object address must not be zero")
	}
	p, err := newPoint(s, opts)
	if err != nil {
		return nil, errors.Trace(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.points[opts.IOA]; ok {
		return nil, errors.New(fmt.Sprintf("duplicate information object address %d", opts.IOA))
	}
	s.points[opts.IOA] = p
	s.order = append(s.order, opts.IOA)
	if debugEnabled(DebugStation) {
		s.log.Debug("point added", log.Any("ioa", opts.IOA), log.Any("type", opts.Type.String()))
	}
	return p, nil
}

// GetPoint returns the point at ioa or nil.
func (s *Station) GetPoint(ioa uint32) *Point {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.points[ioa]
}

// Points returns all points in creation order.
func (s *Station) Points() []*Point {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ps := make([]*Point, 0, len(s.order))
	for _, ioa := range s.order {
		ps = append(ps, s.points[ioa])
	}
	return ps
}

// Close marks the station dead. Point back references observe this and stop
// dereferencing; the points themselves stay readable.
func (s *Station) Close() {
	s.closed.Store(true)
}

func (s *Station) Closed() bool {
	return s.closed.Load()
}
