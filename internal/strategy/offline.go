package strategy

import (
	"net/http"

	"github.com/khaledaj/attendance-gateway/internal/cache"
)

const offlineJSONBody = `{"success": false, "error": "You are offline. Please check your connection.", "offline": true}`

const offlinePageBody = `<!DOCTYPE html>
<html>
<head>
    <title>Offline - Attendance Tracker</title>
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <style>
        body { font-family: Arial, sans-serif; text-align: center; padding: 50px; background: #f5f7fa; }
        .offline-container { max-width: 400px; margin: 0 auto; background: white; padding: 40px; border-radius: 10px; box-shadow: 0 4px 15px rgba(0,0,0,0.1); }
        .offline-icon { font-size: 64px; margin-bottom: 20px; }
        h1 { color: #2c3e50; margin-bottom: 10px; }
        p { color: #7f8c8d; margin-bottom: 30px; }
        .retry-btn { background: #3498db; color: white; border: none; padding: 12px 24px; border-radius: 5px; cursor: pointer; font-size: 16px; }
        .retry-btn:hover { background: #2980b9; }
    </style>
</head>
<body>
    <div class="offline-container">
        <div class="offline-icon">&#128244;</div>
        <h1>You're Offline</h1>
        <p>Please check your internet connection and try again.</p>
        <button class="retry-btn" onclick="window.location.reload()">Try Again</button>
    </div>
</body>
</html>`

func offlineJSONEntry() cache.Entry {
	return cache.Entry{
		Status: http.StatusServiceUnavailable,
		Header: map[string][]string{"Content-Type": {"application/json"}},
		Body:   []byte(offlineJSONBody),
	}
}

func offlinePageEntry() cache.Entry {
	return cache.Entry{
		Status: http.StatusServiceUnavailable,
		Header: map[string][]string{"Content-Type": {"text/html; charset=utf-8"}},
		Body:   []byte(offlinePageBody),
	}
}

func unavailableEntry() cache.Entry {
	return cache.Entry{
		Status: http.StatusServiceUnavailable,
		Header: map[string][]string{"Content-Type": {"text/plain; charset=utf-8"}},
		Body:   []byte("Service Unavailable"),
	}
}
