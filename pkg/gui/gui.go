package gui

import (
	"context"
	"image"
	"image/color"
	"os"

	"gioui.org/app"
	"gioui.org/io/key"
	"gioui.org/io/system"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/op/clip"
	"gioui.org/op/paint"
	"gioui.org/text"
	"gioui.org/unit"
	"gioui.org/widget"
	"gioui.org/widget/material"
	"gioui.org/x/notify"

	"quicktranslator/pkg/controller"
	"quicktranslator/pkg/i18n"
	"quicktranslator/pkg/logger"
	"quicktranslator/pkg/runner"
)

var (
	accentColor  = color.NRGBA{R: 0xFF, G: 0x69, B: 0xB4, A: 0xFF} // #FF69B4
	resultColor  = color.NRGBA{R: 0xFF, G: 0x69, B: 0xB4, A: 100}
	textColor    = color.NRGBA{R: 0, G: 0, B: 0, A: 255}
	warnColor    = color.NRGBA{R: 0xB0, G: 0x60, B: 0x00, A: 255}
	errorColor   = color.NRGBA{R: 0xC0, G: 0x10, B: 0x10, A: 255}
	disabledBg   = color.NRGBA{R: 200, G: 200, B: 200, A: 255}
	disabledText = color.NRGBA{R: 150, G: 150, B: 150, A: 255}
)

// guiState 保存窗口部件和最近一次控制器快照，只在界面线程中访问
type guiState struct {
	theme     *material.Theme
	window    *app.Window
	ctrl      *controller.Controller
	snapshot  controller.Snapshot
	input     widget.Editor
	translate widget.Clickable
	toggle    widget.Clickable
	cancel    widget.Clickable
	result    widget.Selectable
	list      widget.List
	centered  bool
	focused   bool
	notifier  notify.Notifier // 为 nil 时不发送桌面通知
	logger    *logger.Logger
}

// CreateGUI 打开主窗口并阻塞，直到窗口关闭
func CreateGUI(a *runner.App) {
	go func() {
		if err := runWindow(a); err != nil {
			a.Logger.Errorf("window closed with error: %v", err)
		}
		os.Exit(0)
	}()
	app.Main()
}

func runWindow(a *runner.App) error {
	w := new(app.Window)
	w.Option(
		app.Title(i18n.T("Quick Translator")),
		app.Size(unit.Dp(float32(a.Config.UI.Width)), unit.Dp(float32(a.Config.UI.Height))),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Invalidate 可以在任何 goroutine 中调用，后台任务用它唤醒界面线程
	ctrl := a.NewController(ctx, w.Invalidate)
	defer ctrl.Close()

	state := newState(ctrl, w.Invalidate, a.Logger.Named("gui"))
	state.window = w
	if a.Config.UI.Notify {
		n, err := notify.NewNotifier()
		if err != nil {
			state.logger.Warnf("desktop notifications unavailable: %v", err)
		} else {
			state.notifier = n
		}
	}
	return run(state)
}

func newState(ctrl *controller.Controller, invalidate func(), log *logger.Logger) *guiState {
	t := material.NewTheme()
	t.Bg = color.NRGBA{R: 0xFF, G: 0xF0, B: 0xF6, A: 0xFF}
	t.Fg = textColor
	t.ContrastBg = accentColor
	t.ContrastFg = textColor

	state := &guiState{
		theme:    t,
		ctrl:     ctrl,
		snapshot: ctrl.Snapshot(),
		focused:  true,
		logger:   log,
	}
	state.list.Axis = layout.Vertical
	// 控制器状态变化后刷新显示
	ctrl.Subscribe(func(s controller.Snapshot) {
		prev := state.snapshot
		state.snapshot = s
		state.notifyDone(prev, s)
		invalidate()
	})
	return state
}

// run 实现GUI的主循环
func run(state *guiState) error {
	var ops op.Ops

	for {
		state.drainOutcomes()

		switch e := state.window.Event().(type) {
		case app.DestroyEvent:
			return e.Err

		case app.ConfigEvent:
			state.focused = e.Config.Focused

		case app.FrameEvent:
			gtx := app.NewContext(&ops, e)

			if !state.centered {
				state.window.Perform(system.ActionCenter)
				state.centered = true
			}

			state.drainOutcomes()
			state.handleInput(gtx)
			renderUI(gtx, state)

			e.Frame(gtx.Ops)
		}
	}
}

// drainOutcomes 把已完成的翻译结果交给控制器，不阻塞
func (s *guiState) drainOutcomes() {
	for {
		select {
		case o := <-s.ctrl.Outcomes():
			s.ctrl.Deliver(o)
		default:
			return
		}
	}
}

// notifyDone 窗口在后台时，翻译成功后发送桌面通知
func (s *guiState) notifyDone(prev, cur controller.Snapshot) {
	if s.notifier == nil || s.focused {
		return
	}
	if prev.State != controller.InFlight || cur.State != controller.Idle || cur.Err != nil {
		return
	}
	title, body := i18n.T("Quick Translator"), cur.Result
	// D-Bus 调用可能阻塞，不能占用界面线程
	go func() {
		if _, err := s.notifier.CreateNotification(title, body); err != nil {
			s.logger.Warnf("notification failed: %v", err)
		}
	}()
}

// handleInput 把按钮点击和快捷键转发给控制器
func (s *guiState) handleInput(gtx layout.Context) {
	// 翻译中按钮被禁用，重复点击不会到达这里；控制器仍会忽略并发提交
	if s.translate.Clicked(gtx) {
		s.ctrl.Submit(s.input.Text())
	}
	if s.toggle.Clicked(gtx) {
		s.ctrl.ToggleDirection()
	}
	if s.cancel.Clicked(gtx) {
		s.ctrl.Cancel()
	}

	for {
		ev, ok := gtx.Event(
			key.Filter{Name: key.NameEscape},
			key.Filter{Name: key.NameReturn, Required: key.ModShortcut},
		)
		if !ok {
			break
		}
		e, ok := ev.(key.Event)
		if !ok || e.State != key.Press {
			continue
		}
		switch e.Name {
		case key.NameEscape:
			if !s.ctrl.Cancel() {
				s.window.Perform(system.ActionClose)
			}
		case key.NameReturn:
			s.ctrl.Submit(s.input.Text())
		}
	}
}

// renderUI 渲染界面
func renderUI(gtx layout.Context, state *guiState) {
	drawBackground(gtx, state.theme.Bg)
	snap := state.snapshot
	inFlight := !snap.CanSubmit()

	layout.UniformInset(unit.Dp(16)).Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
			// 输入提示
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				lbl := material.Label(state.theme, 20, i18n.T("Enter the text to translate:"))
				return layout.Inset{Bottom: unit.Dp(8)}.Layout(gtx, lbl.Layout)
			}),
			// 输入框
			layout.Flexed(0.35, func(gtx layout.Context) layout.Dimensions {
				ed := material.Editor(state.theme, &state.input, runner.DirectionLabel(snap))
				ed.TextSize = unit.Sp(20)
				return widget.Border{
					Color:        accentColor,
					CornerRadius: unit.Dp(4),
					Width:        unit.Dp(1),
				}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
					gtx.Constraints.Min = gtx.Constraints.Max
					return layout.UniformInset(unit.Dp(10)).Layout(gtx, ed.Layout)
				})
			}),
			layout.Rigid(layout.Spacer{Height: unit.Dp(12)}.Layout),
			// 按钮行
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				label := i18n.T("Translate")
				if inFlight {
					label = i18n.T("Translating...")
				}
				return layout.Flex{Spacing: layout.SpaceBetween}.Layout(gtx,
					layout.Rigid(func(gtx layout.Context) layout.Dimensions {
						return buttonLayout(gtx, state.theme, &state.translate, label, inFlight)
					}),
					layout.Rigid(func(gtx layout.Context) layout.Dimensions {
						return buttonLayout(gtx, state.theme, &state.toggle, runner.ToggleLabel(snap), false)
					}),
					layout.Rigid(func(gtx layout.Context) layout.Dimensions {
						if !inFlight {
							return layout.Dimensions{}
						}
						return buttonLayout(gtx, state.theme, &state.cancel, i18n.T("Cancel"), false)
					}),
				)
			}),
			// 提示信息
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				msg := runner.NoticeText(snap)
				if msg == "" {
					return layout.Dimensions{}
				}
				lbl := material.Label(state.theme, 15, msg)
				lbl.Color = errorColor
				if snap.NoticeKind == controller.NoticeWarning {
					lbl.Color = warnColor
				}
				return layout.Inset{Top: unit.Dp(8)}.Layout(gtx, lbl.Layout)
			}),
			layout.Rigid(layout.Spacer{Height: unit.Dp(12)}.Layout),
			// 翻译结果（可滚动）
			layout.Flexed(0.65, func(gtx layout.Context) layout.Dimensions {
				return resultLayout(gtx, state, snap.Result)
			}),
		)
	})
}

// resultLayout 在半透明粉色背景上显示可滚动、可选择的译文
func resultLayout(gtx layout.Context, state *guiState, result string) layout.Dimensions {
	size := gtx.Constraints.Max
	rr := gtx.Dp(5)
	paint.FillShape(gtx.Ops, resultColor, clip.UniformRRect(image.Rectangle{Max: size}, rr).Op(gtx.Ops))

	return material.List(state.theme, &state.list).Layout(gtx, 1, func(gtx layout.Context, _ int) layout.Dimensions {
		lbl := material.Label(state.theme, 20, result)
		lbl.State = &state.result
		lbl.Alignment = text.Start
		return layout.UniformInset(unit.Dp(10)).Layout(gtx, lbl.Layout)
	})
}

// drawBackground 绘制背景色
func drawBackground(gtx layout.Context, c color.NRGBA) {
	dr := image.Rectangle{Max: gtx.Constraints.Max}
	paint.FillShape(gtx.Ops, c, clip.Rect(dr).Op())
}

// buttonLayout 创建按钮布局
func buttonLayout(gtx layout.Context, theme *material.Theme, button *widget.Clickable, label string, disabled bool) layout.Dimensions {
	margins := layout.Inset{Top: unit.Dp(2), Bottom: unit.Dp(2), Right: unit.Dp(10)}

	return margins.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		gtx.Constraints.Min.X = gtx.Dp(80)

		btn := material.Button(theme, button, label)
		btn.CornerRadius = unit.Dp(4)
		btn.Inset = layout.Inset{
			Top:    unit.Dp(10),
			Bottom: unit.Dp(10),
			Left:   unit.Dp(20),
			Right:  unit.Dp(20),
		}
		btn.TextSize = unit.Sp(18)

		if disabled {
			gtx = gtx.Disabled()
			btn.Background = disabledBg
			btn.Color = disabledText
		} else {
			btn.Background = accentColor
			btn.Color = textColor
		}

		return btn.Layout(gtx)
	})
}
