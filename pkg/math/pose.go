package math

// Pose is a rigid transform: a rotation followed by a translation.
// It always describes a child space relative to a named parent space
// (e.g. head-from-room). Poses are chained with Compose rather than
// converted to matrices and multiplied, which avoids accumulating
// numeric drift in the rotation part.
type Pose struct {
	Orientation Quat
	Position    Vec3
}

// PoseIdentity returns the identity pose (no rotation, no translation).
func PoseIdentity() Pose {
	return Pose{Orientation: QuatIdentity()}
}

// Compose chains two poses: if p is A-from-B and other is B-from-C,
// the result is A-from-C.
func (p Pose) Compose(other Pose) Pose {
	return Pose{
		Orientation: p.Orientation.Mul(other.Orientation).Normalize(),
		Position:    p.Position.Add(p.Orientation.RotateVec(other.Position)),
	}
}

// Invert returns the inverse transform: if p is A-from-B, the result
// is B-from-A.
func (p Pose) Invert() Pose {
	inv := p.Orientation.Conjugate()
	return Pose{
		Orientation: inv,
		Position:    inv.RotateVec(p.Position).Scale(-1),
	}
}

// TransformPoint maps a point from the child space into the parent space.
func (p Pose) TransformPoint(v Vec3) Vec3 {
	return p.Orientation.RotateVec(v).Add(p.Position)
}

// ToMat4 converts the pose to a 4x4 transform matrix.
func (p Pose) ToMat4() Mat4 {
	m := p.Orientation.ToMat4()
	m[12] = p.Position.X
	m[13] = p.Position.Y
	m[14] = p.Position.Z
	return m
}
