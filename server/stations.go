package server

import (
	"errors"
	"fmt"
	"math"

	"bridgesim/ship"
	"bridgesim/weapons"
)

var (
	errShipNotFound   = errors.New("ship not found")
	errWrongStation   = errors.New("command not allowed from this station")
	errUnknownCommand = errors.New("unknown command")
	errNoSuchTube     = errors.New("no such tube")
	errInvalidValue   = errors.New("value must be finite")
	errInvalidCount   = errors.New("salvo count out of range")
)

// 单次齐射上限；实际发数还受弹仓存量限制
const maxSalvoCount = 8

type aimReply struct {
	Type    string   `json:"type"`
	Tube    int      `json:"tube"`
	Bearing *float64 `json:"bearing,omitempty"`
	Result  string   `json:"result,omitempty"`
}

// applyInput 按岗位分派指令；返回错误时舰船状态不变
func (s *Sector) applyInput(c *Crew, msg InputMessage) error {
	sh, ok := s.ships[c.ShipID]
	if !ok {
		return errShipNotFound
	}
	if ParseStation(msg.Type) != c.Station {
		return fmt.Errorf("%w: %s cannot send %q", errWrongStation, c.Station, msg.Type)
	}
	if math.IsNaN(msg.Value) || math.IsInf(msg.Value, 0) {
		return errInvalidValue
	}
	switch c.Station {
	case StationHelm:
		return s.applyHelm(sh, msg)
	case StationWeapons:
		return s.applyWeapons(c, sh, msg)
	case StationEngineering:
		return applyEngineering(sh, msg)
	}
	return errWrongStation
}

func (s *Sector) applyHelm(sh *ship.Ship, msg InputMessage) error {
	switch msg.Command {
	case CmdHeading:
		sh.SetTargetRotation(msg.Value)
	case CmdImpulse:
		sh.SetImpulse(msg.Value)
	case CmdWarp:
		sh.SetWarp(msg.Value)
	case CmdDock:
		if sh.DockingState() != weapons.NotDocking {
			return errors.New("already docking")
		}
		sh.SetDockingState(weapons.Docking)
		sh.SetImpulse(0)
		sh.SetWarp(0)
		s.dockTimers[sh.ID()] = dockingTime
	case CmdUndock:
		sh.SetDockingState(weapons.NotDocking)
		delete(s.dockTimers, sh.ID())
	default:
		return fmt.Errorf("%w: %q", errUnknownCommand, msg.Command)
	}
	return nil
}

func (s *Sector) applyWeapons(c *Crew, sh *ship.Ship, msg InputMessage) error {
	switch msg.Command {
	case CmdTarget:
		if msg.Target == "" {
			sh.SetTargetID("")
			return nil
		}
		if msg.Target == sh.ID() || s.resolve(msg.Target) == nil {
			return fmt.Errorf("invalid target %q", msg.Target)
		}
		sh.SetTargetID(msg.Target)
		return nil
	case CmdBeamFrequency:
		sh.SetBeamFrequency(msg.Frequency)
		return nil
	case CmdBeamSystem:
		sh.SetBeamSystemTarget(weapons.ParseSystem(msg.System))
		return nil
	}

	tube, ok := sh.Tube(msg.Tube)
	if !ok {
		return fmt.Errorf("%w: %d", errNoSuchTube, msg.Tube)
	}
	switch msg.Command {
	case CmdLoad:
		m, ok := weapons.ParseMunition(msg.Munition)
		if !ok {
			return fmt.Errorf("unknown munition %q", msg.Munition)
		}
		if !tube.Load(m) {
			return fmt.Errorf("tube %d cannot load %s", msg.Tube, m)
		}
	case CmdUnload:
		if !tube.Unload() {
			return fmt.Errorf("tube %d is not loaded", msg.Tube)
		}
	case CmdFire:
		if !tube.Fire(s.env(), aimBearing(sh, tube)) {
			return fmt.Errorf("tube %d cannot fire", msg.Tube)
		}
	case CmdSalvo:
		if msg.Count < 1 || msg.Count > maxSalvoCount {
			return fmt.Errorf("%w: %d", errInvalidCount, msg.Count)
		}
		if !tube.StartSalvo(msg.Count, aimBearing(sh, tube)) {
			return fmt.Errorf("tube %d cannot fire a salvo of %d", msg.Tube, msg.Count)
		}
	case CmdAim:
		reply := aimReply{Type: "aim", Tube: msg.Tube}
		if b, ok := tube.CalculateFiringSolution(sh.Target()); ok {
			reply.Bearing = &b
		} else {
			reply.Result = "no_solution"
		}
		s.send(c, reply)
	default:
		return fmt.Errorf("%w: %q", errUnknownCommand, msg.Command)
	}
	return nil
}

// aimBearing 制导弹药有目标且有解时用拦截方位，否则沿发射管朝向直射
func aimBearing(sh *ship.Ship, tube *weapons.Launcher) float64 {
	straight := sh.Rotation() + tube.Direction()
	switch tube.Loaded() {
	case weapons.Homing, weapons.Nuke, weapons.EMP:
	default:
		return straight
	}
	if b, ok := tube.CalculateFiringSolution(sh.Target()); ok {
		return b
	}
	return straight
}

func applyEngineering(sh *ship.Ship, msg InputMessage) error {
	switch msg.Command {
	case CmdPower:
		sys := weapons.ParseSystem(msg.System)
		if sys == weapons.SystemNone {
			return fmt.Errorf("unknown system %q", msg.System)
		}
		sh.SetSystemPower(sys, msg.Value)
	case CmdShieldFrequency:
		sh.SetShieldFrequency(msg.Frequency)
	default:
		return fmt.Errorf("%w: %q", errUnknownCommand, msg.Command)
	}
	return nil
}
