package scripting

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/cory-johannsen/hexbeat/internal/game/building"
	"github.com/cory-johannsen/hexbeat/internal/game/unit"
	"github.com/cory-johannsen/hexbeat/internal/game/world"
)

// Hook names looked up in the VM of the acting unit's team.
const (
	HookValidUnitTarget     = "is_valid_unit_target"
	HookValidBuildingTarget = "is_valid_building_target"
	HookUnitInRange         = "is_unit_in_range"
	HookBuildingInRange     = "is_building_in_range"
	HookBuildingInCapture   = "is_building_in_capture_range"
)

// Policy is a world.Policy whose predicates may be overridden by Lua hooks.
// A hook receives the acting unit and the target as tables and returns a
// boolean; any other result, a missing hook or a runtime error defers to the
// fallback policy.
type Policy struct {
	mgr      *Manager
	fallback world.Policy
}

var _ world.Policy = (*Policy)(nil)

// NewPolicy wraps fallback with mgr's hooks.
//
// Precondition: mgr and fallback must be non-nil.
func NewPolicy(mgr *Manager, fallback world.Policy) *Policy {
	if mgr == nil {
		panic("scripting.NewPolicy: manager must not be nil")
	}
	if fallback == nil {
		panic("scripting.NewPolicy: fallback must not be nil")
	}
	return &Policy{mgr: mgr, fallback: fallback}
}

// IsValidUnitTarget implements world.Policy.
func (p *Policy) IsValidUnitTarget(self, other *unit.Unit) bool {
	if self == nil || other == nil {
		return p.fallback.IsValidUnitTarget(self, other)
	}
	return p.unitHook(HookValidUnitTarget, self, other, p.fallback.IsValidUnitTarget)
}

// IsValidBuildingTarget implements world.Policy.
func (p *Policy) IsValidBuildingTarget(self *unit.Unit, b *building.Building) bool {
	if self == nil || b == nil {
		return p.fallback.IsValidBuildingTarget(self, b)
	}
	return p.buildingHook(HookValidBuildingTarget, self, b, p.fallback.IsValidBuildingTarget)
}

// IsUnitInRange implements world.Policy.
func (p *Policy) IsUnitInRange(self, other *unit.Unit) bool {
	if self == nil || other == nil {
		return p.fallback.IsUnitInRange(self, other)
	}
	return p.unitHook(HookUnitInRange, self, other, p.fallback.IsUnitInRange)
}

// IsBuildingInRange implements world.Policy.
func (p *Policy) IsBuildingInRange(self *unit.Unit, b *building.Building) bool {
	if self == nil || b == nil {
		return p.fallback.IsBuildingInRange(self, b)
	}
	return p.buildingHook(HookBuildingInRange, self, b, p.fallback.IsBuildingInRange)
}

// IsBuildingInCaptureRange implements world.Policy.
func (p *Policy) IsBuildingInCaptureRange(self *unit.Unit, b *building.Building) bool {
	if self == nil || b == nil {
		return p.fallback.IsBuildingInCaptureRange(self, b)
	}
	return p.buildingHook(HookBuildingInCapture, self, b, p.fallback.IsBuildingInCaptureRange)
}

func (p *Policy) unitHook(hook string, self, other *unit.Unit, fallback func(self, other *unit.Unit) bool) bool {
	def := fallback(self, other)
	ret := p.mgr.Invoke(self.Team.String(), hook, func(L *lua.LState) []lua.LValue {
		return []lua.LValue{unitTable(L, self), unitTable(L, other), lua.LBool(def)}
	})
	if b, ok := ret.(lua.LBool); ok {
		return bool(b)
	}
	return def
}

func (p *Policy) buildingHook(hook string, self *unit.Unit, b *building.Building, fallback func(*unit.Unit, *building.Building) bool) bool {
	def := fallback(self, b)
	ret := p.mgr.Invoke(self.Team.String(), hook, func(L *lua.LState) []lua.LValue {
		return []lua.LValue{unitTable(L, self), buildingTable(L, b), lua.LBool(def)}
	})
	if v, ok := ret.(lua.LBool); ok {
		return bool(v)
	}
	return def
}

func unitTable(L *lua.LState, u *unit.Unit) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("id", lua.LString(u.ID))
	t.RawSetString("template", lua.LString(u.TemplateID))
	t.RawSetString("team", lua.LString(u.Team.String()))
	t.RawSetString("col", lua.LNumber(u.Pos.Col))
	t.RawSetString("row", lua.LNumber(u.Pos.Row))
	t.RawSetString("health", lua.LNumber(u.Health))
	t.RawSetString("max_health", lua.LNumber(u.MaxHealth))
	t.RawSetString("attack", lua.LNumber(u.Attack))
	t.RawSetString("defense", lua.LNumber(u.Defense))
	t.RawSetString("attack_range", lua.LNumber(u.AttackRange))
	t.RawSetString("detection_range", lua.LNumber(u.DetectionRange))
	t.RawSetString("defensive", lua.LBool(u.Defensive))
	t.RawSetString("alive", lua.LBool(u.Alive()))
	return t
}

func buildingTable(L *lua.LState, b *building.Building) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("id", lua.LString(b.ID))
	t.RawSetString("team", lua.LString(b.Team.String()))
	t.RawSetString("health", lua.LNumber(b.Health))
	t.RawSetString("max_health", lua.LNumber(b.MaxHealth))
	t.RawSetString("targetable", lua.LBool(b.Targetable))
	t.RawSetString("capturable", lua.LBool(b.Capturable()))
	t.RawSetString("recapturable", lua.LBool(b.Recapturable()))
	tiles := L.NewTable()
	for _, c := range b.Tiles {
		tiles.Append(coordTable(L, c))
	}
	t.RawSetString("tiles", tiles)
	return t
}
