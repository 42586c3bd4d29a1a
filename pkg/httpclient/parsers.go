// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package httpclient

import (
	"net/http"
	"strconv"
	"time"
)

// ParseRateLimitHeaders extracts rate limit info from the conventional
// Retry-After and X-RateLimit-* headers.
func ParseRateLimitHeaders(headers http.Header) RateLimitInfo {
	info := RateLimitInfo{
		RetryAfter: ParseRetryAfter(headers.Get("Retry-After"), time.Now()),
	}

	// Reset is either epoch seconds or a delta in seconds
	if reset := headers.Get("X-RateLimit-Reset"); reset != "" {
		if v, err := strconv.ParseInt(reset, 10, 64); err == nil {
			if v > 1_000_000_000 {
				info.ResetTime = v
			} else if v > 0 {
				info.ResetTime = time.Now().Add(time.Duration(v) * time.Second).Unix()
			}
		}
	}

	if remaining := headers.Get("X-RateLimit-Remaining-Requests"); remaining != "" {
		info.RequestsRemaining, _ = strconv.Atoi(remaining)
	} else if remaining := headers.Get("X-RateLimit-Remaining"); remaining != "" {
		info.RequestsRemaining, _ = strconv.Atoi(remaining)
	}
	if remaining := headers.Get("X-RateLimit-Remaining-Tokens"); remaining != "" {
		info.TokensRemaining, _ = strconv.Atoi(remaining)
	}

	return info
}

// ParseRetryAfter parses a Retry-After value given either as delay seconds
// or as an HTTP date. Invalid or past values yield zero.
func ParseRetryAfter(value string, now time.Time) time.Duration {
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
