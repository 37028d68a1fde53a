// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build !dev

package supervisor

// BuildMode is the default Mode for this build.
const BuildMode = ModePackaged
