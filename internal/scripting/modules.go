package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/hexbeat/internal/game/hexgrid"
	"github.com/cory-johannsen/hexbeat/internal/game/team"
)

// RegisterModules registers the engine.* Lua table into L:
//
//	engine.log.debug/info/warn(msg)
//	engine.distance(col1, row1, col2, row2) -> integer
//	engine.min_distance(col, row, tiles) -> integer or nil
//	engine.hostile(team_a, team_b) -> boolean
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: engine global is defined in L.
func (m *Manager) RegisterModules(L *lua.LState) {
	engine := L.NewTable()
	L.SetField(engine, "log", m.newLogModule(L))
	L.SetField(engine, "distance", L.NewFunction(luaDistance))
	L.SetField(engine, "min_distance", L.NewFunction(luaMinDistance))
	L.SetField(engine, "hostile", L.NewFunction(luaHostile))
	L.SetGlobal("engine", engine)
}

func (m *Manager) newLogModule(L *lua.LState) *lua.LTable {
	mod := L.NewTable()
	levels := map[string]func(string, ...zap.Field){
		"debug": m.logger.Debug,
		"info":  m.logger.Info,
		"warn":  m.logger.Warn,
	}
	for name, fn := range levels {
		L.SetField(mod, name, L.NewFunction(func(L *lua.LState) int {
			fn(L.CheckString(1), zap.String("source", "lua"))
			return 0
		}))
	}
	return mod
}

func luaDistance(L *lua.LState) int {
	a := hexgrid.C(L.CheckInt(1), L.CheckInt(2))
	b := hexgrid.C(L.CheckInt(3), L.CheckInt(4))
	L.Push(lua.LNumber(hexgrid.Distance(a, b)))
	return 1
}

func luaMinDistance(L *lua.LState) int {
	c := hexgrid.C(L.CheckInt(1), L.CheckInt(2))
	tbl := L.CheckTable(3)
	var set []hexgrid.Coord
	tbl.ForEach(func(_, v lua.LValue) {
		if t, ok := v.(*lua.LTable); ok {
			set = append(set, coordFromTable(t))
		}
	})
	d, ok := hexgrid.MinDistance(c, set)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LNumber(d))
	return 1
}

func luaHostile(L *lua.LState) int {
	a, errA := team.Parse(L.CheckString(1))
	b, errB := team.Parse(L.CheckString(2))
	if errA != nil || errB != nil {
		L.ArgError(1, "unknown team")
		return 0
	}
	L.Push(lua.LBool(team.Hostile(a, b)))
	return 1
}

func coordFromTable(t *lua.LTable) hexgrid.Coord {
	col, _ := t.RawGetString("col").(lua.LNumber)
	row, _ := t.RawGetString("row").(lua.LNumber)
	return hexgrid.C(int(col), int(row))
}

func coordTable(L *lua.LState, c hexgrid.Coord) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("col", lua.LNumber(c.Col))
	t.RawSetString("row", lua.LNumber(c.Row))
	return t
}
