// Package leaderboard ranks won games per board size.
package leaderboard
