package collide

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/0x5844/physics-3d/geom"
	"github.com/0x5844/physics-3d/shape"
)

// RayCast intersects the world segment p0->p1 with o. The hit normal and point are in world
// space.
func RayCast(o Object, p0, p1 mgl64.Vec3) (shape.Hit, bool) {
	hit, ok := o.Shape.RayCast(geom.UntransformPoint(o.Pose, p0), geom.UntransformPoint(o.Pose, p1))
	if !ok {
		return hit, false
	}
	hit.Normal = geom.TransformVector(o.Pose, hit.Normal)
	hit.Point = geom.TransformPoint(o.Pose, hit.Point)
	return hit, true
}
