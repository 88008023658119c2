package page

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/campus-widgets/backend/internal/analysis/page"
	"github.com/zhouzirui/campus-widgets/backend/internal/model/persona"
	"github.com/zhouzirui/campus-widgets/backend/pkg/utils"
)

// counterSpeed 是小科站点计数动画的等分步数
const counterSpeed = 200

// Handler 页面效果数据的HTTP处理器
type Handler struct {
	personas persona.Store
}

// New 创建页面处理器
func New(personas persona.Store) *Handler {
	return &Handler{personas: personas}
}

// RegisterRoutes 注册页面路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/page/{personaID}", h.handlePage)
	r.Post("/page/{personaID}/scroll", h.handleScroll)
}

// CounterView is a counter with its pre-rendered animation frames.
type CounterView struct {
	persona.Counter
	Frames []string `json:"frames"`
}

// PageView 是落地页的可计算部分。
type PageView struct {
	PersonaID     string         `json:"personaId"`
	NavbarSolidAt int            `json:"navbarSolidAt"`
	AnchorOffset  int            `json:"anchorOffset"`
	SectionOffset int            `json:"sectionOffset"`
	Counters      []CounterView  `json:"counters"`
	Chart         *persona.Chart `json:"chart,omitempty"`
}

// ScrollRequest describes the page sections and the current scroll position.
type ScrollRequest struct {
	ScrollY  int            `json:"scrollY"`
	Sections []page.Section `json:"sections"`
}

// ScrollView 当前滚动位置下的导航状态。
type ScrollView struct {
	NavbarSolid   bool           `json:"navbarSolid"`
	ActiveSection string         `json:"activeSection"`
	ScrollTargets map[string]int `json:"scrollTargets"`
}

func (h *Handler) handlePage(w http.ResponseWriter, r *http.Request) {
	p, ok := h.personas.FindByID(chi.URLParam(r, "personaID"))
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "persona not found")
		return
	}

	view := PageView{
		PersonaID:     p.ID,
		NavbarSolidAt: page.NavbarThreshold,
		AnchorOffset:  page.AnchorOffset,
		SectionOffset: p.SectionOffset,
		Counters:      make([]CounterView, 0, len(p.Counters)),
		Chart:         p.Chart,
	}
	for _, c := range p.Counters {
		view.Counters = append(view.Counters, CounterView{Counter: c, Frames: counterFrames(p.CounterStyle, c.Target)})
	}

	utils.RespondJSON(w, http.StatusOK, view)
}

func counterFrames(style string, target int) []string {
	if style == "tween" {
		return page.CounterFrames(target)
	}

	steps := page.CounterSteps(target, counterSpeed)
	frames := make([]string, 0, len(steps))
	for _, step := range steps {
		frames = append(frames, strconv.Itoa(step))
	}
	return frames
}

func (h *Handler) handleScroll(w http.ResponseWriter, r *http.Request) {
	p, ok := h.personas.FindByID(chi.URLParam(r, "personaID"))
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "persona not found")
		return
	}

	var req ScrollRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	targets := make(map[string]int, len(req.Sections))
	for _, section := range req.Sections {
		targets[section.ID] = page.ScrollTarget(section.Top)
	}

	utils.RespondJSON(w, http.StatusOK, ScrollView{
		NavbarSolid:   page.NavbarSolid(req.ScrollY),
		ActiveSection: page.ActiveSection(req.Sections, req.ScrollY, p.SectionOffset),
		ScrollTargets: targets,
	})
}
