package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func registerPrompts(s *server.MCPServer) {
	s.AddPrompt(mcp.Prompt{
		Name:        "visualization_template",
		Description: "Template for creating data visualizations with matplotlib.",
	}, func(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		return promptResult("Matplotlib visualization guidance", visualizationTemplate), nil
	})

	s.AddPrompt(mcp.Prompt{
		Name:        "data_analysis_template",
		Description: "Template for data analysis tasks with pandas.",
	}, func(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		return promptResult("Pandas data analysis guidance", dataAnalysisTemplate), nil
	})
}

func promptResult(description, text string) *mcp.GetPromptResult {
	return &mcp.GetPromptResult{
		Description: description,
		Messages: []mcp.PromptMessage{
			{
				Role:    mcp.RoleUser,
				Content: mcp.TextContent{Type: "text", Text: text},
			},
		},
	}
}

const visualizationTemplate = `# Data Visualization Template

When creating visualizations with Python:

1. Import required libraries:
   import matplotlib.pyplot as plt
   import numpy as np  # if needed

2. Define your data:
   x = [1, 2, 3, 4, 5]
   y = [2, 4, 6, 8, 10]

3. Create the plot:
   plt.figure(figsize=(10, 6))
   plt.plot(x, y, marker='o')
   plt.xlabel('X Label')
   plt.ylabel('Y Label')
   plt.title('Chart Title')
   plt.grid(True)

4. Display or save the plot:
   plt.show()  # auto-saved to a uniquely named PNG in the workspace
   # or explicitly:
   plt.savefig('plot_name.png', dpi=150, bbox_inches='tight')

Common chart types:
- Line plot: plt.plot(x, y)
- Bar chart: plt.bar(x, y)
- Scatter plot: plt.scatter(x, y)
- Histogram: plt.hist(data)
- Pie chart: plt.pie(values, labels=labels)
`

const dataAnalysisTemplate = `# Data Analysis Template

For data analysis tasks with pandas:

1. Import libraries:
   import pandas as pd
   import numpy as np

2. Create or load data:
   df = pd.DataFrame({
       'column1': [1, 2, 3],
       'column2': ['a', 'b', 'c']
   })
   # or from a workspace file:
   # df = pd.read_csv('data.csv')

3. Explore the data:
   print(df.head())
   print(df.info())
   print(df.describe())

4. Perform analysis:
   grouped = df.groupby('column1').agg({'column2': 'count'})
   filtered = df[df['column1'] > 1]
   mean_val = df['column1'].mean()

5. Visualize results:
   df.plot(kind='bar')
   plt.show()
`
