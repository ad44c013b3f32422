package world

import "github.com/tilerealm/server/internal/core/timer"

// Projectile carries a precomputed hit from its owner to a target. The owner
// and target are weak references.
type Projectile struct {
	Base
	owner  Instance
	target Instance

	startX, startY int
	destX, destY   int
	speed          int
	hit            Hit

	expiry timer.Handle
}

func NewProjectile(id Instance, key string, owner, target Fighter, hit Hit) *Projectile {
	ob, tb := owner.Core(), target.Core()
	p := &Projectile{
		owner:  ob.instance,
		target: tb.instance,
		startX: ob.x,
		startY: ob.y,
		destX:  tb.x,
		destY:  tb.y,
		speed:  150,
		hit:    hit,
	}
	p.hit.Ranged = true
	p.bind(p, id, KindProjectile, key, ob.x, ob.y)
	return p
}

func (p *Projectile) Owner() Instance  { return p.owner }
func (p *Projectile) Target() Instance { return p.target }
func (p *Projectile) Hit() Hit         { return p.hit }
func (p *Projectile) Damage() int      { return p.hit.Amount() }
func (p *Projectile) Speed() int       { return p.speed }

func (p *Projectile) Start() (int, int)       { return p.startX, p.startY }
func (p *Projectile) Destination() (int, int) { return p.destX, p.destY }

// SetDestination retargets the projectile when its target moves.
func (p *Projectile) SetDestination(x, y int) { p.destX, p.destY = x, y }

func (p *Projectile) Expiry() timer.Handle     { return p.expiry }
func (p *Projectile) SetExpiry(h timer.Handle) { p.expiry = h }

func (p *Projectile) SpawnInfo() SpawnInfo {
	info := p.Base.SpawnInfo()
	info.Owner = p.owner
	info.Target = p.target
	info.Damage = p.hit.Amount()
	return info
}
