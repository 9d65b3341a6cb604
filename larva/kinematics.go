package larva

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

const degToRad = math.Pi / 180

// bounds returns the arena's symmetric box.
func bounds(a Arena) r2.Box {
	x, y := a.Length()/2, a.Width()/2
	return r2.Box{Min: r2.Vec{X: -x, Y: -y}, Max: r2.Vec{X: x, Y: y}}
}

// rotateHead rotates the head about the joint by angle degrees, positive
// counter-clockwise. The joint does not move.
func (l *Larva) rotateHead(angle float64) {
	l.head = r2.Rotate(l.head, angle*degToRad, l.joint)
}

func (l *Larva) rotateNormalCast(dt float64) {
	l.rotateHead(dt * l.p.CastSpeed * float64(l.castDir))
}

func (l *Larva) rotateWeathervaneCast(dt float64) {
	l.rotateHead(dt * l.p.WVCastSpeed * float64(l.castDir))
}

// moveForward translates head and joint together by VFwd*dt along the
// heading. A move that would take the head out of the arena is dropped and
// the larva is sent to CastStart instead.
func (l *Larva) moveForward(ctx Context) {
	distance := ctx.DT * l.p.VFwd
	if !l.collisionCheck(distance, ctx.Arena) {
		return
	}
	d := r2.Scale(distance, l.velocity)
	l.head = r2.Add(l.head, d)
	l.joint = r2.Add(l.joint, d)
}

// collisionCheck reports whether the head, projected distance along the
// heading, stays inside the arena. Unlike the other predicates it has a side
// effect: on violation it sets the state to CastStart.
func (l *Larva) collisionCheck(distance float64, a Arena) bool {
	projection := r2.Add(l.head, r2.Scale(distance, l.velocity))
	if !bounds(a).Contains(projection) {
		l.state = CastStart
		return false
	}
	return true
}

// UpdateVelocity points the heading along the joint-to-head vector.
func (l *Larva) UpdateVelocity() error {
	body := r2.Sub(l.head, l.joint)
	if r2.Norm(body) == 0 {
		return fmt.Errorf("%w: at (%.3f, %.3f)", ErrDegenerateBody, l.head.X, l.head.Y)
	}
	l.velocity = r2.Unit(body)
	return nil
}

// HeadAngle returns the unsigned angle in degrees, within [0, 180], between
// the joint-to-head vector and the heading.
func (l *Larva) HeadAngle() float64 {
	body := r2.Sub(l.head, l.joint)
	cos := r2.Dot(body, l.velocity) / (r2.Norm(body) * r2.Norm(l.velocity))
	// Rounding pushes cos just past 1 when the vectors are aligned.
	cos = math.Min(1, math.Max(cos, -1))
	return math.Acos(cos) / degToRad
}

// SignedHeadAngle returns the head angle in degrees within (-180, 180],
// positive when the head is counter-clockwise of the heading.
func (l *Larva) SignedHeadAngle() float64 {
	body := r2.Sub(l.head, l.joint)
	return math.Atan2(r2.Cross(l.velocity, body), r2.Dot(l.velocity, body)) / degToRad
}
