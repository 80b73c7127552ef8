package agents

import "context"

// System replies to session-conflict refusals (spec.md §4.6 step 4,
// §7.4: "surfaced to the user via the system_agent reply path").
type System struct{}

func (System) Info() Info {
	return Info{Name: "system_agent", Description: "system notifications", Priority: 1, Enabled: true}
}

func (System) Run(ctx context.Context, query string, context_ map[string]interface{}) Response {
	return Response{
		Agent:   "system_agent",
		Query:   query,
		Message: "一个更高优先级的任务正在进行中，请稍后再试。",
		Status:  Completed,
	}
}

// Chat is the configurable default agent spec.md §4.6 falls back to when
// confidence is low.
type Chat struct{}

func (Chat) Info() Info {
	return Info{Name: "chat_agent", Description: "general conversation fallback", Priority: 1, Enabled: true}
}

func (Chat) Run(ctx context.Context, query string, context_ map[string]interface{}) Response {
	return Response{Agent: "chat_agent", Query: query, Message: "好的，还有什么可以帮您？", Status: Completed}
}

// VehicleControl is priority 3 (non-interruptible), grounded on spec.md §8
// scenario 1's "打开空调" and scenario 3's priority-3 preemption example.
type VehicleControl struct{}

func (VehicleControl) Info() Info {
	return Info{Name: "vehicle_control_agent", Description: "vehicle controls (A/C, windows, lights)", Priority: 3, Enabled: true}
}

func (VehicleControl) Run(ctx context.Context, query string, context_ map[string]interface{}) Response {
	return Response{Agent: "vehicle_control_agent", Query: query, Message: "空调已打开。", Status: Completed}
}

// Music is priority 2, interruptible (spec.md §8 scenario 3).
type Music struct{}

func (Music) Info() Info {
	return Info{Name: "music_agent", Description: "music playback control", Priority: 2, Enabled: true}
}

func (Music) Run(ctx context.Context, query string, context_ map[string]interface{}) Response {
	return Response{Agent: "music_agent", Query: query, Message: "正在播放音乐。", Status: Completed}
}

// Weather is priority 2 (spec.md §8 scenario 3).
type Weather struct{}

func (Weather) Info() Info {
	return Info{Name: "weather_agent", Description: "weather lookups", Priority: 2, Enabled: true}
}

func (Weather) Run(ctx context.Context, query string, context_ map[string]interface{}) Response {
	return Response{Agent: "weather_agent", Query: query, Message: "今天晴，25度。", Status: Completed}
}

// Workflow demonstrates the multi-turn WAITING_INPUT path (spec.md §8
// scenario 4): the first call asks a clarifying question, the second
// (arriving with last_user_input set by session.ResumeSession) completes.
type Workflow struct{}

func (Workflow) Info() Info {
	return Info{Name: "workflow_agent", Description: "multi-step task flows", Priority: 2, Enabled: true}
}

func (Workflow) Run(ctx context.Context, query string, context_ map[string]interface{}) Response {
	if answer, ok := context_["last_user_input"].(string); ok && answer != "" {
		return Response{
			Agent:   "workflow_agent",
			Query:   query,
			Message: "好的，正在为" + answer + "规划行程。",
			Status:  Completed,
		}
	}
	return Response{
		Agent:   "workflow_agent",
		Query:   query,
		Message: "哪个城市？",
		Status:  WaitingInput,
	}
}
