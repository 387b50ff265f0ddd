// Package tgui provides small Telegram UI helpers:
//   - HTML fragments that are safe for ParseMode="HTML"
//   - inline keyboard builders
//   - callback data helpers ("scope:action:payload")
package tgui
