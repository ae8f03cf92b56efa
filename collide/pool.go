package collide

import (
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

// Pool recycles manifolds and the scratch buffers of EPA and feature clipping across the
// narrow-phase workers.
type Pool struct {
	manifoldPool sync.Pool
	epaPool      sync.Pool
	clipPool     sync.Pool
}

func NewPool() *Pool {
	return &Pool{
		manifoldPool: sync.Pool{
			New: func() any {
				return &Manifold{Points: make([]Point, 0, 4)}
			},
		},
		epaPool: sync.Pool{
			New: func() any {
				return &epaScratch{
					verts: make([]epaVertex, 0, 32),
					faces: make([]epaFace, 0, 64),
					edges: make([]epaEdge, 0, 32),
				}
			},
		},
		clipPool: sync.Pool{
			New: func() any {
				return &clipScratch{
					ref:  make([]mgl64.Vec3, 0, 16),
					inc:  make([]mgl64.Vec3, 0, 16),
					tmp:  make([]mgl64.Vec3, 0, 32),
					pts:  make([]Point, 0, 16),
					work: make([]mgl64.Vec3, 0, 32),
				}
			},
		},
	}
}

func (p *Pool) GetManifold() *Manifold {
	m := p.manifoldPool.Get().(*Manifold)
	m.Reset()
	return m
}

func (p *Pool) PutManifold(m *Manifold) {
	p.manifoldPool.Put(m)
}

func (p *Pool) getEPA() *epaScratch {
	s := p.epaPool.Get().(*epaScratch)
	s.verts = s.verts[:0]
	s.faces = s.faces[:0]
	s.edges = s.edges[:0]
	return s
}

func (p *Pool) putEPA(s *epaScratch) { p.epaPool.Put(s) }

func (p *Pool) getClip() *clipScratch {
	s := p.clipPool.Get().(*clipScratch)
	s.ref = s.ref[:0]
	s.inc = s.inc[:0]
	s.tmp = s.tmp[:0]
	s.pts = s.pts[:0]
	s.work = s.work[:0]
	return s
}

func (p *Pool) putClip(s *clipScratch) { p.clipPool.Put(s) }

type clipScratch struct {
	ref, inc, tmp []mgl64.Vec3
	pts           []Point
	work          []mgl64.Vec3
}
